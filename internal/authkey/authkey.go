// Package authkey implements the keyed-hash handshake used to authenticate
// a robot session.
//
// It intentionally avoids transport and session concerns: it knows nothing
// about sockets, framing, or the state machine that drives a conversation.
package authkey

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

var ErrKeyOutOfRange = errors.New("authkey: key id out of range")

// KeyPair is one (server_key, client_key) entry in the configured key table.
type KeyPair struct {
	Server uint16
	Client uint16
}

// Table is the ordered key table; index is the Key ID.
type Table []KeyPair

// Lookup returns the pair at id, or ErrKeyOutOfRange if id falls outside
// [0, len(t)). id is signed because a client may send a negative Key ID,
// which is numerically valid but always out of range.
func (t Table) Lookup(id int64) (KeyPair, error) {
	if id < 0 || id >= int64(len(t)) {
		return KeyPair{}, ErrKeyOutOfRange
	}
	return t[id], nil
}

// DefaultTable returns the five key pairs used by the reference robot
// fleet when no configuration supplies a table of its own.
func DefaultTable() Table {
	return Table{
		{Server: 23019, Client: 32037},
		{Server: 32037, Client: 29295},
		{Server: 18789, Client: 13603},
		{Server: 16443, Client: 29533},
		{Server: 18189, Client: 21952},
	}
}

// UsernameHash computes (sum of unsigned byte values of username * 1000) mod 2^16.
func UsernameHash(username []byte) uint16 {
	var sum uint32
	for _, b := range username {
		sum += uint32(b)
	}
	return uint16((sum * 1000) % 0x10000)
}

// ServerConfirm returns (hash + pair.Server) mod 2^16, the value the server
// sends back to the robot for it to echo through its own key.
func ServerConfirm(hash uint16, pair KeyPair) uint16 {
	return add16(hash, pair.Server)
}

// ExpectedClientConfirm returns (hash + pair.Client) mod 2^16, the value the
// robot's confirmation must equal for authentication to succeed.
func ExpectedClientConfirm(hash uint16, pair KeyPair) uint16 {
	return add16(hash, pair.Client)
}

// ClientConfirmOK reports whether confirm matches the expected value for
// hash and pair.
func ClientConfirmOK(hash uint16, pair KeyPair, confirm uint16) bool {
	want := ExpectedClientConfirm(hash, pair)
	var a, b [2]byte
	binary.BigEndian.PutUint16(a[:], want)
	binary.BigEndian.PutUint16(b[:], confirm)
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func add16(a, b uint16) uint16 {
	return uint16((uint32(a) + uint32(b)) % 0x10000)
}
