package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/core"
)

const readTimeout = 2 * time.Second

type testServer struct {
	*Server
	hub  *core.Hub
	addr string
}

func startServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hub := core.NewHub(nil)
	srv := NewServer(hub, opts, nil)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		require.ErrorIs(t, <-served, ErrServerClosed)
	})

	return &testServer{Server: srv, hub: hub, addr: ln.Addr().String()}
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// join dials, sends nickname and consumes the help lines.
func join(t *testing.T, addr, nickname string) *client {
	t.Helper()
	c := dial(t, addr)
	c.send(nickname)
	for range core.HelpNotices() {
		line := c.readLine()
		require.Contains(t, line, "[SYSTEM] ", "unexpected handshake reply for %s", nickname)
	}
	return c
}

func (c *client) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

func (c *client) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err, "partial read %q", line)
	return line
}

func (c *client) expect(want string) {
	c.t.Helper()
	require.Equal(c.t, want, c.readLine())
}

// expectClosed reads until the server closes the connection.
func (c *client) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		_, err := c.r.ReadString('\n')
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.t.Fatalf("connection still open: %v", err)
		}
		return
	}
}
