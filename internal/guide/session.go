// Package guide composes the wire, protocolmsg, authkey, and navigator
// packages into the per-connection session state machine and the
// server front-end that spawns one session per accepted connection.
package guide

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sxccxs/robot-server/internal/authkey"
	"github.com/sxccxs/robot-server/internal/config"
	"github.com/sxccxs/robot-server/internal/grid"
	"github.com/sxccxs/robot-server/internal/navigator"
	"github.com/sxccxs/robot-server/internal/observability"
	"github.com/sxccxs/robot-server/internal/protocolmsg"
	"github.com/sxccxs/robot-server/internal/protoerr"
	"github.com/sxccxs/robot-server/internal/wire"
)

// Phase is one state of the per-session protocol state machine.
type Phase int

const (
	PhaseAwaitingUsername Phase = iota
	PhaseAwaitingKeyID
	PhaseAwaitingClientConfirm
	PhaseNavigating
	PhaseAwaitingSecret
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingUsername:
		return "AwaitingUsername"
	case PhaseAwaitingKeyID:
		return "AwaitingKeyId"
	case PhaseAwaitingClientConfirm:
		return "AwaitingClientConfirm"
	case PhaseNavigating:
		return "Navigating"
	case PhaseAwaitingSecret:
		return "AwaitingSecret"
	case PhaseTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// conn is the subset of net.Conn a session needs; satisfied directly by
// net.Conn and by the in-memory pipes used in tests.
type conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// session is one robot's end-to-end conversation: the Go realization of
// spec.md's Session State. Position, heading, steps_remaining, and
// obstacle_hits are owned by nav rather than duplicated here; everything
// else (phase, username, key material, recharge flag) lives directly on
// the struct.
type session struct {
	id   uint64
	uuid string

	c      conn
	framer *wire.Framer
	cfg    config.Config
	keys   authkey.Table
	log    zerolog.Logger

	phase        Phase
	username     string
	usernameHash uint16
	keyID        int64
	pair         authkey.KeyPair
	recharging   bool
	outcome      string

	nav *navigator.Navigator
}

func newSession(id uint64, c conn, cfg config.Config, log zerolog.Logger) *session {
	sessUUID := uuid.NewString()
	return &session{
		id:     id,
		uuid:   sessUUID,
		c:      c,
		framer: wire.New(c, []byte(cfg.Terminator)),
		cfg:    cfg,
		keys:   cfg.KeyTable(),
		log:    log.With().Uint64("session", id).Str("session_uuid", sessUUID).Logger(),
		phase:  PhaseAwaitingUsername,
	}
}

// Position reports the navigator's current belief of position, or
// (grid.Point{}, false) before navigation has started.
func (s *session) Position() (grid.Point, bool) {
	if s.nav == nil {
		return grid.Point{}, false
	}
	return s.nav.Position()
}

// Heading reports the navigator's current belief of heading, or
// (0, false) before it has been inferred.
func (s *session) Heading() (grid.Heading, bool) {
	if s.nav == nil {
		return 0, false
	}
	return s.nav.Heading()
}

// run drives the session to completion: one phase at a time until
// Terminated, sending at most one outgoing message per received client
// message, except that a matching client confirmation is answered with
// both 200 OK and the first navigation command.
func (s *session) run() {
	observability.RecordSessionStart()
	started := time.Now()
	s.outcome = observability.OutcomeSecretDelivered
	s.log.Info().Msg("session started")
	defer func() {
		observability.RecordSessionEnd(s.outcome, started)
		s.log.Info().Str("phase", s.phase.String()).Str("outcome", s.outcome).Msg("session ended")
	}()

	for s.phase != PhaseTerminated {
		if err := s.step(); err != nil {
			s.fail(err)
			return
		}
	}
}

func (s *session) step() error {
	switch s.phase {
	case PhaseAwaitingUsername:
		return s.stepAwaitingUsername()
	case PhaseAwaitingKeyID:
		return s.stepAwaitingKeyID()
	case PhaseAwaitingClientConfirm:
		return s.stepAwaitingClientConfirm()
	case PhaseNavigating:
		return s.stepNavigating()
	case PhaseAwaitingSecret:
		return s.stepAwaitingSecret()
	default:
		return protoerr.ErrLogic
	}
}

func (s *session) stepAwaitingUsername() error {
	payload, err := s.receive(protocolmsg.MaxUsernameLen)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	username, err := protocolmsg.ParseUsername(payload)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	s.username = username
	s.usernameHash = authkey.UsernameHash([]byte(username))
	s.phase = PhaseAwaitingKeyID
	if err := s.send(protocolmsg.MsgKeyRequest); err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	return nil
}

func (s *session) stepAwaitingKeyID() error {
	payload, err := s.receive(protocolmsg.MaxKeyIDLen)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	keyID, err := protocolmsg.ParseKeyID(payload)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	pair, err := s.keys.Lookup(keyID)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	s.keyID = keyID
	s.pair = pair
	s.phase = PhaseAwaitingClientConfirm
	confirm := authkey.ServerConfirm(s.usernameHash, pair)
	if err := s.send(strconv.Itoa(int(confirm))); err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	return nil
}

func (s *session) stepAwaitingClientConfirm() error {
	payload, err := s.receive(protocolmsg.MaxConfirmationLen)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	confirm, err := protocolmsg.ParseConfirmation(payload)
	if err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	// Confirmations outside [0, 0xFFFF] cannot equal any expected value
	// and fall into the same LoginFailed bucket as a plain mismatch,
	// rather than a separate syntax failure.
	if confirm < 0 || confirm > 0xFFFF || !authkey.ClientConfirmOK(s.usernameHash, s.pair, uint16(confirm)) {
		return &AuthenticationFailed{Cause: protoerr.ErrLoginFailed}
	}
	if err := s.send(protocolmsg.MsgOK); err != nil {
		return &AuthenticationFailed{Cause: err}
	}
	s.phase = PhaseNavigating
	s.nav = navigator.New(s.cfg.MaxSteps, s.cfg.MaxObstacleHits)
	cmd := s.nav.Start()
	if err := s.send(commandMessage(cmd)); err != nil {
		return &MoveFailed{Cause: err}
	}
	return nil
}

func (s *session) stepNavigating() error {
	payload, err := s.receive(protocolmsg.MaxOKLen)
	if err != nil {
		return &MoveFailed{Cause: err}
	}
	pt, err := protocolmsg.ParseOK(payload)
	if err != nil {
		return &MoveFailed{Cause: err}
	}
	hitsBefore := s.nav.ObstacleHits()
	cmd, err := s.nav.Feed(pt)
	if s.nav.ObstacleHits() > hitsBefore {
		observability.RecordObstacleHit()
	}
	if err != nil {
		return &MoveFailed{Cause: err}
	}
	if cmd == navigator.CmdPickUp {
		if err := s.send(protocolmsg.MsgGetMessage); err != nil {
			return &MoveFailed{Cause: err}
		}
		s.phase = PhaseAwaitingSecret
		return nil
	}
	if err := s.send(commandMessage(cmd)); err != nil {
		return &MoveFailed{Cause: err}
	}
	return nil
}

func (s *session) stepAwaitingSecret() error {
	payload, err := s.receive(protocolmsg.MaxMessageLen)
	if err != nil {
		return &GetSecretMessageFailed{Cause: err}
	}
	if _, err := protocolmsg.ParseMessage(payload); err != nil {
		return &GetSecretMessageFailed{Cause: err}
	}
	if err := s.send(protocolmsg.MsgLogout); err != nil {
		return &GetSecretMessageFailed{Cause: err}
	}
	s.phase = PhaseTerminated
	return nil
}

// receive reads the next message due for fieldMaxLen, transparently
// applying the recharge overlay (spec.md §4.6): RECHARGING is admitted
// at every receive regardless of phase, so the frame-level max length
// must also admit its literal even when fieldMaxLen is smaller.
func (s *session) receive(fieldMaxLen int) ([]byte, error) {
	frameMax := fieldMaxLen
	if protocolmsg.MaxRechargingLen > frameMax {
		frameMax = protocolmsg.MaxRechargingLen
	}
	payload, err := s.framer.ReadMessage(frameMax, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	if protocolmsg.IsRecharging(payload) {
		return s.handleRecharge(fieldMaxLen)
	}
	if protocolmsg.IsFullPower(payload) {
		return nil, protoerr.ErrLogic
	}
	return payload, nil
}

// handleRecharge waits up to timeout_recharging for exactly one more
// message. FULL POWER clears the flag and resumes the originally due
// receive; anything else (including a second RECHARGING) is a logic
// violation.
func (s *session) handleRecharge(fieldMaxLen int) ([]byte, error) {
	s.recharging = true
	s.log.Debug().Msg("recharge started")
	next, err := s.framer.ReadMessage(protocolmsg.MaxFullPowerLen, time.Duration(s.cfg.TimeoutRechargingSeconds)*time.Second)
	s.recharging = false
	if err != nil {
		return nil, err
	}
	if !protocolmsg.IsFullPower(next) {
		return nil, protoerr.ErrLogic
	}
	observability.RecordRechargeCycle()
	s.log.Debug().Msg("recharge ended")
	return s.receive(fieldMaxLen)
}

func (s *session) send(text string) error {
	payload := append([]byte(text), []byte(s.cfg.Terminator)...)
	_ = s.c.SetWriteDeadline(time.Now().Add(time.Duration(s.cfg.TimeoutSeconds) * time.Second))
	_, err := s.c.Write(payload)
	return err
}

// sendQuiet is used for the single terminal response a failed session
// may still owe the client; write errors are logged, not propagated,
// since the session is closing either way.
func (s *session) sendQuiet(text string) {
	if err := s.send(text); err != nil {
		s.log.Debug().Err(err).Msg("failed writing terminal response")
	}
}

// fail dispatches a terminal session error to its wire response, the
// Go analogue of original_source/server/worker.py's _process_error
// match statement. The phase-wrapper error types unwrap to one of the
// protoerr sentinels or authkey.ErrKeyOutOfRange, which is all that
// decides the outgoing message.
func (s *session) fail(err error) {
	s.phase = PhaseTerminated
	switch {
	case errors.Is(err, authkey.ErrKeyOutOfRange):
		s.outcome = observability.OutcomeKeyOutOfRange
		s.log.Warn().Err(err).Msg("key id out of range")
		s.sendQuiet(protocolmsg.MsgKeyOutOfRange)
	case errors.Is(err, protoerr.ErrSyntax):
		s.outcome = observability.OutcomeSyntaxError
		s.log.Warn().Err(err).Msg("syntax error")
		s.sendQuiet(protocolmsg.MsgSyntaxError)
	case errors.Is(err, protoerr.ErrLoginFailed):
		s.outcome = observability.OutcomeLoginFailed
		s.log.Warn().Err(err).Msg("login failed")
		s.sendQuiet(protocolmsg.MsgLoginFailed)
	case errors.Is(err, protoerr.ErrLogic):
		s.outcome = observability.OutcomeLogicError
		s.log.Warn().Err(err).Msg("logic error")
		s.sendQuiet(protocolmsg.MsgLogicError)
	case errors.Is(err, protoerr.ErrTimeout):
		s.outcome = observability.OutcomeTimeout
		s.log.Info().Msg("session timed out")
	case errors.Is(err, protoerr.ErrExhaustion):
		s.outcome = observability.OutcomeExhaustion
		s.log.Info().Err(err).Msg("navigator exhausted its budget")
	default:
		s.outcome = observability.OutcomeTransportError
		s.log.Error().Err(err).Msg("session terminated on transport error")
	}
}

func commandMessage(cmd navigator.Command) string {
	switch cmd {
	case navigator.CmdMove:
		return protocolmsg.MsgMove
	case navigator.CmdTurnLeft:
		return protocolmsg.MsgTurnLeft
	case navigator.CmdTurnRight:
		return protocolmsg.MsgTurnRight
	case navigator.CmdPickUp:
		return protocolmsg.MsgGetMessage
	default:
		return protocolmsg.MsgSyntaxError
	}
}

