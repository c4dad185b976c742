package core

import (
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

var errBrokenPipe = errors.New("broken pipe")

// recordingConn is a net.Conn that keeps every written line and can be told
// to fail writes.
type recordingConn struct {
	mu     sync.Mutex
	buf    strings.Builder
	fail   bool
	closed bool
	// stall, when set, blocks writes until the conn is closed.
	stall chan struct{}
}

func (c *recordingConn) Read([]byte) (int, error) { return 0, net.ErrClosed }

func (c *recordingConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if stall := c.stall; stall != nil && !c.closed {
		c.mu.Unlock()
		<-stall
		return 0, net.ErrClosed
	}
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.fail {
		return 0, errBrokenPipe
	}
	return c.buf.Write(p)
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.stall != nil {
		close(c.stall)
	}
	c.closed = true
	return nil
}

func (c *recordingConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (c *recordingConn) RemoteAddr() net.Addr             { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *recordingConn) SetDeadline(time.Time) error      { return nil }
func (c *recordingConn) SetReadDeadline(time.Time) error  { return nil }
func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) setFail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = true
}

func (c *recordingConn) setStall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stall = make(chan struct{})
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func newTestSession(t *testing.T) (*Session, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	return NewSession(conn, time.Second), conn
}

func mustJoin(t *testing.T, hub *Hub, nickname string) (*Session, *recordingConn) {
	t.Helper()
	s, conn := newTestSession(t)
	if err := hub.Join(nickname, s); err != nil {
		t.Fatalf("join %s: %v", nickname, err)
	}
	return s, conn
}
