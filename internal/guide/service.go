package guide

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sxccxs/robot-server/internal/config"
)

// Service is the server front-end: it owns the listener and the shared
// immutable config/key table, and spawns one session per accepted
// connection, grounded on the teacher's internal/mirage/service.go
// Serve/handleConn pair.
type Service struct {
	cfg config.Config
	log zerolog.Logger

	nextSessionID atomic.Uint64
	activeCount   atomic.Int64

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	sessionsMu sync.Mutex
	sessions   map[uint64]string
}

// NewService returns a Service ready to Serve on an already-bound
// listener.
func NewService(cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
		sessions: make(map[uint64]string),
	}
}

// ActiveSessions reports the number of sessions currently in flight,
// exposed on the admin HTTP /status endpoint.
func (s *Service) ActiveSessions() int64 { return s.activeCount.Load() }

// ActiveSessionUUIDs reports the correlation id of every session
// currently in flight, exposed on the admin HTTP /status endpoint.
func (s *Service) ActiveSessionUUIDs() []string {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	uuids := make([]string, 0, len(s.sessions))
	for _, u := range s.sessions {
		uuids = append(uuids, u)
	}
	return uuids
}

func (s *Service) trackSession(id uint64, uuid string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[id] = uuid
}

func (s *Service) untrackSession(id uint64) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, id)
}

// Serve accepts connections on ln until ctx is cancelled or the
// listener errors, spawning one goroutine per session.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(c)
		go s.handleConn(c)
	}
}

func (s *Service) handleConn(c net.Conn) {
	defer c.Close()
	defer s.untrackConn(c)

	id := s.nextSessionID.Add(1)
	active := s.activeCount.Add(1)
	remote := c.RemoteAddr().String()
	s.log.Info().Uint64("session", id).Str("remote", remote).Int64("active_sessions", active).Msg("session connected")
	defer func() {
		remaining := s.activeCount.Add(-1)
		s.log.Info().Uint64("session", id).Str("remote", remote).Int64("active_sessions", remaining).Msg("session disconnected")
	}()

	sess := newSession(id, c, s.cfg, s.log)
	s.trackSession(id, sess.uuid)
	defer s.untrackSession(id)
	sess.run()
}

func (s *Service) trackConn(c net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Service) untrackConn(c net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, c)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		_ = c.Close()
		delete(s.conns, c)
	}
}
