package tcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDuplicateNicknameThenReconnect(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")

	bob := dial(t, srv.addr)
	bob.send("Alice")
	bob.expect("[SYSTEM] nickname in use\n")
	bob.expectClosed()

	join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")
	assert.Equal(t, 2, srv.hub.Registry().Len())
}

func TestInvalidNicknameRejected(t *testing.T) {
	srv := startServer(t, Options{})

	for _, name := range []string{"", "two words", "/quit", strings.Repeat("n", 25)} {
		c := dial(t, srv.addr)
		c.send(name)
		c.expect("[SYSTEM] invalid nickname\n")
		c.expectClosed()
	}
	assert.Zero(t, srv.hub.Registry().Len())
}

func TestBroadcastReachesOthersOnly(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")
	carol := join(t, srv.addr, "Carol")
	alice.expect("[SYSTEM] Carol joined\n")
	bob.expect("[SYSTEM] Carol joined\n")

	alice.send("hello")
	bob.expect("Alice> hello\n")
	carol.expect("Alice> hello\n")

	bob.send("done")
	alice.expect("Bob> done\n")
}

func TestEmptyLinesIgnored(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")

	alice.send("")
	alice.send("   ")
	alice.send("after blanks")
	bob.expect("Alice> after blanks\n")
}

func TestWhisper(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")
	carol := join(t, srv.addr, "Carol")
	alice.expect("[SYSTEM] Carol joined\n")
	bob.expect("[SYSTEM] Carol joined\n")

	alice.send("/w Bob hi there")
	bob.expect("(whisper)Alice> hi there\n")
	alice.expect("(whisper)->Bob: hi there\n")

	alice.send("/whisper Bob   spaced    out")
	bob.expect("(whisper)Alice> spaced    out\n")
	alice.expect("(whisper)->Bob: spaced    out\n")

	alice.send("/w Dave hi")
	alice.expect("[SYSTEM] target not found\n")

	alice.send("/w Bob")
	alice.expect("[SYSTEM] usage: /w <target> <message>\n")

	// Carol saw none of the above.
	bob.send("sync")
	carol.expect("Bob> sync\n")
}

func TestQuitAnnouncesDeparture(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")

	bob.send("/quit")
	bob.expect("[SYSTEM] closing connection\n")
	bob.expectClosed()
	alice.expect("[SYSTEM] Bob left\n")

	require.Eventually(t, func() bool { return srv.hub.Registry().Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPeerDisconnectAnnouncesDeparture(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")

	require.NoError(t, bob.conn.Close())
	alice.expect("[SYSTEM] Bob left\n")

	alice.send("/w Bob still there?")
	alice.expect("[SYSTEM] target not found\n")
}

func TestConcurrentDistinctHandshakes(t *testing.T) {
	srv := startServer(t, Options{})
	const n = 20

	clients := make([]*client, n)
	for i := range clients {
		clients[i] = dial(t, srv.addr)
	}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(c.conn, "user%02d\n", i)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return srv.hub.Registry().Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastKeepsPerSenderOrder(t *testing.T) {
	srv := startServer(t, Options{WriteTimeout: time.Second})
	const n = 50

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	carol := join(t, srv.addr, "Carol")
	dave := join(t, srv.addr, "Dave")
	alice.expect("[SYSTEM] Bob joined\n")
	alice.expect("[SYSTEM] Carol joined\n")
	alice.expect("[SYSTEM] Dave joined\n")
	bob.expect("[SYSTEM] Carol joined\n")
	bob.expect("[SYSTEM] Dave joined\n")
	carol.expect("[SYSTEM] Dave joined\n")

	senders := map[string]*client{"Alice": alice, "Bob": bob, "Carol": carol}
	var wg sync.WaitGroup
	for nickname, c := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range n {
				if _, err := fmt.Fprintf(c.conn, "%s-%d\n", nickname, i); err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	assertSenderOrder(t, dave, 3*n)
	for _, c := range senders {
		assertSenderOrder(t, c, 2*n)
	}
}

// assertSenderOrder reads count chat lines from c and checks that each
// sender's numbered lines arrive in the order they were sent.
func assertSenderOrder(t *testing.T, c *client, count int) {
	t.Helper()
	next := make(map[string]int)
	for range count {
		line := strings.TrimSuffix(c.readLine(), "\n")
		sender, body, ok := strings.Cut(line, "> ")
		require.True(t, ok, "not a chat line: %q", line)
		prefix, seq, ok := strings.Cut(body, "-")
		require.True(t, ok, "unexpected body: %q", body)
		require.Equal(t, sender, prefix)

		i, err := strconv.Atoi(seq)
		require.NoError(t, err)
		require.Equal(t, next[sender], i, "%s: line from %s out of order", line, sender)
		next[sender]++
	}
}

func TestConcurrentSameNickname(t *testing.T) {
	srv := startServer(t, Options{})

	clients := []*client{dial(t, srv.addr), dial(t, srv.addr)}
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.conn.Write([]byte("Alice\n"))
		}()
	}
	wg.Wait()

	var accepted, rejected int
	for _, c := range clients {
		switch line := c.readLine(); line {
		case "[SYSTEM] nickname in use\n":
			rejected++
			c.expectClosed()
		default:
			assert.True(t, strings.HasPrefix(line, "[SYSTEM] whisper:"), line)
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, srv.hub.Registry().Len())
}

func TestIdleTimeoutClosesSession(t *testing.T) {
	srv := startServer(t, Options{IdleTimeout: 100 * time.Millisecond})

	alice := join(t, srv.addr, "Alice")
	alice.expectClosed()

	require.Eventually(t, func() bool { return srv.hub.Registry().Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestOverlongLineClosesSession(t *testing.T) {
	srv := startServer(t, Options{MaxLineBytes: 64})

	alice := join(t, srv.addr, "Alice")
	bob := join(t, srv.addr, "Bob")
	alice.expect("[SYSTEM] Bob joined\n")

	bob.send(strings.Repeat("x", 200))
	bob.expectClosed()
	alice.expect("[SYSTEM] Bob left\n")
}

func TestShutdownNotifiesAndDisconnects(t *testing.T) {
	srv := startServer(t, Options{})

	alice := join(t, srv.addr, "Alice")
	pending := dial(t, srv.addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	alice.expect("[SYSTEM] server shutting down\n")
	alice.expectClosed()
	pending.expectClosed()
	assert.Zero(t, srv.ActiveConnections())
}
