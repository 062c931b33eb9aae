// Package protocolmsg validates and decodes the payloads the framer
// hands up: it knows the syntactic shape of every client message kind,
// but nothing about sockets, sessions, or timeouts.
package protocolmsg

import (
	"strconv"
	"strings"

	"github.com/sxccxs/robot-server/internal/grid"
	"github.com/sxccxs/robot-server/internal/protoerr"
)

// Maximum payload lengths, excluding the terminator, per the wire
// protocol's client message catalog.
const (
	MaxUsernameLen     = 18
	MaxKeyIDLen        = 3
	MaxConfirmationLen = 5
	MaxOKLen           = 10
	MaxRechargingLen   = len(RechargingLiteral)
	MaxFullPowerLen    = len(FullPowerLiteral)
	MaxMessageLen      = 98
)

// RechargingLiteral and FullPowerLiteral are the exact literal payloads
// recognized outside the free-form alternatives (username, secret
// message); they are matched before those alternatives are attempted.
const (
	RechargingLiteral = "RECHARGING"
	FullPowerLiteral  = "FULL POWER"
)

// Server message catalog, verbatim text sent ahead of the terminator.
const (
	MsgKeyRequest    = "107 KEY REQUEST"
	MsgMove          = "102 MOVE"
	MsgTurnLeft      = "103 TURN LEFT"
	MsgTurnRight     = "104 TURN RIGHT"
	MsgGetMessage    = "105 GET MESSAGE"
	MsgLogout        = "106 LOGOUT"
	MsgOK            = "200 OK"
	MsgLoginFailed   = "300 LOGIN FAILED"
	MsgSyntaxError   = "301 SYNTAX ERROR"
	MsgLogicError    = "302 LOGIC ERROR"
	MsgKeyOutOfRange = "303 KEY OUT OF RANGE"
)

// IsRecharging reports whether payload is the exact RECHARGING literal.
func IsRecharging(payload []byte) bool {
	return string(payload) == RechargingLiteral
}

// IsFullPower reports whether payload is the exact FULL POWER literal.
func IsFullPower(payload []byte) bool {
	return string(payload) == FullPowerLiteral
}

// ParseUsername validates a username payload: any non-empty bytes, at
// most MaxUsernameLen, that aren't RECHARGING or FULL POWER.
func ParseUsername(payload []byte) (string, error) {
	return parseFreeForm(payload, MaxUsernameLen)
}

// ParseMessage validates a secret-message payload under the same rules
// as a username, but with the message length ceiling.
func ParseMessage(payload []byte) (string, error) {
	return parseFreeForm(payload, MaxMessageLen)
}

func parseFreeForm(payload []byte, maxLen int) (string, error) {
	if len(payload) == 0 || len(payload) > maxLen {
		return "", protoerr.ErrSyntax
	}
	s := string(payload)
	if s == RechargingLiteral || s == FullPowerLiteral {
		return "", protoerr.ErrSyntax
	}
	return s, nil
}

// ParseKeyID decodes a Key ID payload as a signed decimal integer. It
// does not range-check against the key table; callers compare the
// result against the table length to raise KeyOutOfRange.
func ParseKeyID(payload []byte) (int64, error) {
	return parseSignedInt(payload, MaxKeyIDLen)
}

// ParseConfirmation decodes a client confirmation payload as a signed
// decimal integer.
func ParseConfirmation(payload []byte) (int64, error) {
	return parseSignedInt(payload, MaxConfirmationLen)
}

// ParseOK decodes an `OK <x> <y>` acknowledgement payload.
func ParseOK(payload []byte) (grid.Point, error) {
	if len(payload) == 0 || len(payload) > MaxOKLen {
		return grid.Point{}, protoerr.ErrSyntax
	}
	s := string(payload)
	if !strings.HasPrefix(s, "OK ") {
		return grid.Point{}, protoerr.ErrSyntax
	}
	fields := strings.Split(s[len("OK "):], " ")
	if len(fields) != 2 {
		return grid.Point{}, protoerr.ErrSyntax
	}
	x, err := parseSignedIntString(fields[0])
	if err != nil {
		return grid.Point{}, err
	}
	y, err := parseSignedIntString(fields[1])
	if err != nil {
		return grid.Point{}, err
	}
	return grid.Point{X: int(x), Y: int(y)}, nil
}

func parseSignedInt(payload []byte, maxLen int) (int64, error) {
	if len(payload) == 0 || len(payload) > maxLen {
		return 0, protoerr.ErrSyntax
	}
	return parseSignedIntString(string(payload))
}

// parseSignedIntString accepts an optional leading minus sign followed
// by one or more decimal digits, and nothing else.
func parseSignedIntString(s string) (int64, error) {
	digits := s
	if strings.HasPrefix(s, "-") {
		digits = s[1:]
	}
	if digits == "" {
		return 0, protoerr.ErrSyntax
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, protoerr.ErrSyntax
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, protoerr.ErrSyntax
	}
	return n, nil
}
