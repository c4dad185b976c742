package core

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is a step of the per-connection protocol.
type State int32

const (
	// StateAwaitingNickname is the initial state, before the handshake line.
	StateAwaitingNickname State = iota
	// StateActive is a registered session in its read loop.
	StateActive
	// StateTerminating is removing the session and closing its transport.
	StateTerminating
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingNickname:
		return "awaiting_nickname"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	default:
		return "closed"
	}
}

// Session is the state of one client connection. The goroutine serving the
// connection owns it; the Registry only references it.
type Session struct {
	ID string

	conn         net.Conn
	writeTimeout time.Duration

	// nickname is written once by Registry.Insert under the registry lock.
	nickname string

	state     atomic.Int32
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps a connection. A zero writeTimeout disables write deadlines.
func NewSession(conn net.Conn, writeTimeout time.Duration) *Session {
	return &Session{
		ID:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Nickname returns the registered nickname, or "" before registration.
func (s *Session) Nickname() string {
	return s.nickname
}

// Conn returns the underlying transport.
func (s *Session) Conn() net.Conn {
	return s.conn
}

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// State returns the current protocol state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetState moves the session to st. Closed is sticky.
func (s *Session) SetState(st State) {
	for {
		cur := s.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

// Send writes one line to the peer. Writes to the same session are
// serialized, so lines from one sender arrive in the order they were sent.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return TransportError(err)
		}
	}
	if _, err := io.WriteString(s.conn, line); err != nil {
		return TransportError(err)
	}
	return nil
}

// SendMessage formats and writes msg.
func (s *Session) SendMessage(msg Message) error {
	return s.Send(msg.Format())
}

// Close closes the transport. It is safe to call more than once and from
// any goroutine; a blocked Send is interrupted.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.SetState(StateClosed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
