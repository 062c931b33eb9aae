package guide

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sxccxs/robot-server/internal/authkey"
	"github.com/sxccxs/robot-server/internal/config"
	"github.com/sxccxs/robot-server/internal/grid"
	"github.com/sxccxs/robot-server/internal/protoerr"
	"github.com/sxccxs/robot-server/internal/protocolmsg"
	"github.com/sxccxs/robot-server/internal/testutil/testlog"
	"github.com/sxccxs/robot-server/internal/wire"
)

// robot is a minimal client-side simulator: it tracks ground-truth pose
// and applies the server's movement commands to it, mirroring the
// navigator package's own test double but driven over the real wire
// format instead of in-process calls.
type robot struct {
	pos     grid.Point
	heading grid.Heading
}

func (r *robot) apply(cmdText string) grid.Point {
	switch cmdText {
	case protocolmsg.MsgTurnLeft:
		r.heading = r.heading.TurnLeft()
	case protocolmsg.MsgTurnRight:
		r.heading = r.heading.TurnRight()
	case protocolmsg.MsgMove:
		r.pos = r.heading.Step(r.pos)
	}
	return r.pos
}

func writeLine(t *testing.T, c net.Conn, term, text string) {
	t.Helper()
	if _, err := c.Write([]byte(text + term)); err != nil {
		t.Fatalf("write %q: %v", text, err)
	}
}

func readMsg(t *testing.T, f *wire.Framer) string {
	t.Helper()
	payload, err := f.ReadMessage(128, 2*time.Second)
	if err != nil {
		t.Fatalf("readMsg: %v", err)
	}
	return string(payload)
}

func expectMsg(t *testing.T, f *wire.Framer, want string) {
	t.Helper()
	if got := readMsg(t, f); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func handshake(t *testing.T, cc net.Conn, f *wire.Framer, cfg config.Config, username string) {
	t.Helper()
	pair := cfg.KeyTable()[0]
	writeLine(t, cc, cfg.Terminator, username)
	expectMsg(t, f, protocolmsg.MsgKeyRequest)
	writeLine(t, cc, cfg.Terminator, "0")

	hash := authkey.UsernameHash([]byte(username))
	wantServerConfirm := authkey.ServerConfirm(hash, pair)
	got := readMsg(t, f)
	if got != strconv.Itoa(int(wantServerConfirm)) {
		t.Fatalf("server confirm = %q, want %d", got, wantServerConfirm)
	}

	clientConfirm := authkey.ExpectedClientConfirm(hash, pair)
	writeLine(t, cc, cfg.Terminator, strconv.Itoa(int(clientConfirm)))
	expectMsg(t, f, protocolmsg.MsgOK)
}

func TestSessionHappyPathNoObstacles(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	f := wire.New(clientConn, []byte(cfg.Terminator))
	handshake(t, clientConn, f, cfg, "Oompa Loompa")

	r := &robot{pos: grid.Point{X: 3, Y: -2}, heading: grid.East}
	for {
		cmd := readMsg(t, f)
		if cmd == protocolmsg.MsgGetMessage {
			writeLine(t, clientConn, cfg.Terminator, "the secret ingredient is love")
			expectMsg(t, f, protocolmsg.MsgLogout)
			break
		}
		pos := r.apply(cmd)
		writeLine(t, clientConn, cfg.Terminator, "OK "+strconv.Itoa(pos.X)+" "+strconv.Itoa(pos.Y))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate")
	}
	clientConn.Close()
}

func TestSessionOversizeUsernameSyntaxError(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	oversize := make([]byte, protocolmsg.MaxUsernameLen+10)
	for i := range oversize {
		oversize[i] = 'a'
	}
	go clientConn.Write(oversize)

	f := wire.New(clientConn, []byte(cfg.Terminator))
	expectMsg(t, f, protocolmsg.MsgSyntaxError)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate")
	}
	clientConn.Close()
}

func TestSessionKeyOutOfRange(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	f := wire.New(clientConn, []byte(cfg.Terminator))
	writeLine(t, clientConn, cfg.Terminator, "Oompa Loompa")
	expectMsg(t, f, protocolmsg.MsgKeyRequest)
	writeLine(t, clientConn, cfg.Terminator, "99")
	expectMsg(t, f, protocolmsg.MsgKeyOutOfRange)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate")
	}
	clientConn.Close()
}

func TestSessionWrongConfirmationLoginFailed(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	f := wire.New(clientConn, []byte(cfg.Terminator))
	writeLine(t, clientConn, cfg.Terminator, "Oompa Loompa")
	expectMsg(t, f, protocolmsg.MsgKeyRequest)
	writeLine(t, clientConn, cfg.Terminator, "0")
	readMsg(t, f) // server confirm, ignored
	writeLine(t, clientConn, cfg.Terminator, "1")
	expectMsg(t, f, protocolmsg.MsgLoginFailed)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate")
	}
	clientConn.Close()
}

func TestSessionFullPowerWithoutRechargingIsLogicError(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	f := wire.New(clientConn, []byte(cfg.Terminator))
	writeLine(t, clientConn, cfg.Terminator, "FULL POWER")
	expectMsg(t, f, protocolmsg.MsgLogicError)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate")
	}
	clientConn.Close()
}

func TestSessionRechargeDuringNavigationResumesWithoutResend(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.TimeoutRechargingSeconds = 2
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	f := wire.New(clientConn, []byte(cfg.Terminator))
	handshake(t, clientConn, f, cfg, "Oompa Loompa")

	expectMsg(t, f, protocolmsg.MsgMove) // Start(): establishes p0
	writeLine(t, clientConn, cfg.Terminator, "OK 3 5")

	expectMsg(t, f, protocolmsg.MsgMove) // second move: pose probe
	writeLine(t, clientConn, cfg.Terminator, "RECHARGING")

	// Nothing should be sent while the server waits for FULL POWER: no
	// resend of the move, no premature next command.
	if _, err := f.ReadMessage(128, 200*time.Millisecond); !errors.Is(err, protoerr.ErrTimeout) {
		t.Fatalf("expected a read timeout while recharging, got %v", err)
	}

	writeLine(t, clientConn, cfg.Terminator, "FULL POWER")
	// The server resumes awaiting the ack that was originally due, not a
	// fresh command.
	writeLine(t, clientConn, cfg.Terminator, "OK 3 4")

	next := readMsg(t, f)
	if next != protocolmsg.MsgMove && next != protocolmsg.MsgTurnLeft && next != protocolmsg.MsgTurnRight {
		t.Fatalf("unexpected next command after recharge: %q", next)
	}

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func TestSessionRechargeTimeoutClosesSilently(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.TimeoutRechargingSeconds = 1
	serverConn, clientConn := net.Pipe()
	sess := newSession(1, serverConn, cfg, log.Logger)

	done := make(chan struct{})
	go func() { sess.run(); close(done) }()

	f := wire.New(clientConn, []byte(cfg.Terminator))
	writeLine(t, clientConn, cfg.Terminator, "Oompa Loompa")
	expectMsg(t, f, protocolmsg.MsgKeyRequest)
	writeLine(t, clientConn, cfg.Terminator, "RECHARGING")

	// No FULL POWER follows: the recharge deadline fires and the session
	// closes without sending anything further.
	if _, err := f.ReadMessage(128, 3*time.Second); err == nil {
		t.Fatalf("expected no further message, session should close silently")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate")
	}
	clientConn.Close()
}
