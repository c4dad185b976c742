// Package tcp serves the line chat protocol over stream connections.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("tcp: server closed")

// Options tunes per-connection behaviour.
type Options struct {
	// IdleTimeout disconnects a session that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	// WriteTimeout bounds each line written to a peer. Zero disables it.
	WriteTimeout time.Duration
	// MaxLineBytes caps an inbound line.
	MaxLineBytes int
}

const defaultMaxLineBytes = 4096

// Server accepts connections and runs one session per connection.
type Server struct {
	hub  *core.Hub
	opts Options
	log  *zerolog.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	sessions  map[*core.Session]struct{}
	closed    bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewServer builds a server for hub.
func NewServer(hub *core.Hub, opts Options, logger *zerolog.Logger) *Server {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		hub:       hub,
		opts:      opts,
		log:       logger,
		listeners: make(map[net.Listener]struct{}),
		sessions:  make(map[*core.Session]struct{}),
		done:      make(chan struct{}),
	}
}

// Serve accepts connections on ln until the listener is closed or Shutdown
// is called. Other accept errors are logged and retried with a growing
// delay. Accepting never waits on an existing session.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = nextBackoff(backoff)
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			select {
			case <-time.After(backoff):
			case <-s.done:
				return ErrServerClosed
			}
			continue
		}
		backoff = 0

		sess := core.NewSession(conn, s.opts.WriteTimeout)
		if !s.admit(sess) {
			_ = sess.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.release(sess)
			newSessionRunner(s, sess).run()
		}()
	}
}

// ServeConn runs the protocol on an already established connection and
// returns when the session is closed.
func (s *Server) ServeConn(conn net.Conn) {
	sess := core.NewSession(conn, s.opts.WriteTimeout)
	if !s.admit(sess) {
		_ = sess.Close()
		return
	}
	defer s.release(sess)
	newSessionRunner(s, sess).run()
}

// Shutdown stops accepting, tells every session the server is going away,
// closes all connections and waits for session goroutines until ctx is done.
// A peer that stalls the shutdown notice is cut off when ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	for ln := range s.listeners {
		_ = ln.Close()
	}
	s.mu.Unlock()

	s.hub.Close(ctx)

	s.mu.Lock()
	for sess := range s.sessions {
		_ = sess.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all sessions closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections returns the number of open connections, registered or not.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// admit starts tracking sess. It fails once Shutdown has begun, so the
// wait group is never incremented after Shutdown waits on it.
func (s *Server) admit(sess *core.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) release(sess *core.Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.wg.Done()
}

func nextBackoff(d time.Duration) time.Duration {
	const maxBackoff = time.Second
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > maxBackoff {
		d = maxBackoff
	}
	return d
}
