package guide

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sxccxs/robot-server/internal/authkey"
	"github.com/sxccxs/robot-server/internal/config"
	"github.com/sxccxs/robot-server/internal/protocolmsg"
	"github.com/sxccxs/robot-server/internal/testutil/testlog"
	"github.com/sxccxs/robot-server/internal/wire"
)

func TestServiceServeHandlesOneSessionEndToEnd(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	svc := NewService(cfg, log.Logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- svc.Serve(ctx, ln) }()

	cc, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	f := wire.New(cc, []byte(cfg.Terminator))
	pair := cfg.KeyTable()[0]
	writeLine(t, cc, cfg.Terminator, "Oompa Loompa")
	expectMsg(t, f, protocolmsg.MsgKeyRequest)
	writeLine(t, cc, cfg.Terminator, "0")

	hash := authkey.UsernameHash([]byte("Oompa Loompa"))
	_ = authkey.ServerConfirm(hash, pair)
	readMsg(t, f) // server confirm, content checked by session_test.go
	clientConfirm := authkey.ExpectedClientConfirm(hash, pair)
	writeLine(t, cc, cfg.Terminator, strconv.Itoa(int(clientConfirm)))
	expectMsg(t, f, protocolmsg.MsgOK)

	if got := svc.ActiveSessions(); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}

	cc.Close()
	time.Sleep(100 * time.Millisecond)
	if got := svc.ActiveSessions(); got != 0 {
		t.Fatalf("active sessions after close = %d, want 0", got)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after context cancellation")
	}
}

func TestServiceServeClosesActiveConnectionsOnShutdown(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	svc := NewService(cfg, log.Logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- svc.Serve(ctx, ln) }()

	cc, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cc.Close()

	writeLine(t, cc, cfg.Terminator, "Oompa Loompa")
	f := wire.New(cc, []byte(cfg.Terminator))
	expectMsg(t, f, protocolmsg.MsgKeyRequest)

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after context cancellation")
	}

	// The connection was forcibly closed by the shutdown; further reads
	// must fail rather than hang.
	cc.SetReadDeadline(time.Now().Add(1 * time.Second))
	buf := make([]byte, 1)
	if _, err := cc.Read(buf); err == nil {
		t.Fatalf("expected connection to be closed by shutdown")
	}
}
