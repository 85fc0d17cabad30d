package relay

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cryptex/internal/crypto"
	"cryptex/internal/domain"
	"cryptex/internal/log"
	"cryptex/internal/protocol/wire"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	cfg := &Config{Addr: "127.0.0.1:0"}
	require.NoError(t, cfg.Validate())

	backend, err := log.New("", "ERROR", true)
	require.NoError(t, err)

	srv := New(cfg, backend, domain.NopAuditor{})
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Halt)
	return srv
}

// testClient drives the wire protocol directly against a live server.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *wire.Reader
	keys   *crypto.KeyPair
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	return &testClient{t: t, conn: conn, reader: wire.NewReader(conn, 0), keys: keys}
}

// register authenticates and asserts the SUCCESS reply.
func (c *testClient) register(name string) {
	c.t.Helper()
	c.sendAuth(name, crypto.ExportPublic(c.keys.Public))

	line := c.readLine()
	require.Equal(c.t, wire.AuthOK, line)
}

func (c *testClient) sendAuth(name, pem string) {
	c.t.Helper()
	_, err := c.conn.Write(wire.New(wire.TypeAuth, name, pem).Encode())
	require.NoError(c.t, err)
}

func (c *testClient) send(env wire.Envelope) {
	c.t.Helper()
	_, err := c.conn.Write(env.Encode())
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := c.reader.Next()
	require.NoError(c.t, err)
	return string(frame)
}

// expect reads envelopes until one matches pred, failing on deadline.
// Envelopes of other types arriving in between (directory updates and the
// like) are skipped.
func (c *testClient) expect(pred func(wire.Envelope) bool) wire.Envelope {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.conn.SetReadDeadline(deadline)
		env, err := c.reader.NextEnvelope()
		require.NoError(c.t, err, "expected envelope before deadline")
		if pred(env) {
			return env
		}
	}
}

// expectNone asserts no envelope of the given type arrives within the window.
func (c *testClient) expectNone(typ wire.Type, window time.Duration) {
	c.t.Helper()
	deadline := time.Now().Add(window)
	for {
		c.conn.SetReadDeadline(deadline)
		env, err := c.reader.NextEnvelope()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			return // EOF or close also means nothing arrived
		}
		require.NotEqual(c.t, typ, env.Type, "unexpected %s envelope", typ)
	}
}

func isType(typ wire.Type) func(wire.Envelope) bool {
	return func(env wire.Envelope) bool { return env.Type == typ }
}

func isKeyExchangeFor(name string) func(wire.Envelope) bool {
	return func(env wire.Envelope) bool {
		return env.Type == wire.TypeKeyExchange && len(env.Fields) == 2 && env.Fields[0] == name
	}
}

func userListWith(names ...string) func(wire.Envelope) bool {
	return func(env wire.Envelope) bool {
		if env.Type != wire.TypeUserList || len(env.Fields) != 1 {
			return false
		}
		var got []string
		if json.Unmarshal([]byte(env.Fields[0]), &got) != nil {
			return false
		}
		if len(got) != len(names) {
			return false
		}
		seen := make(map[string]bool, len(got))
		for _, n := range got {
			seen[n] = true
		}
		for _, n := range names {
			if !seen[n] {
				return false
			}
		}
		return true
	}
}

func TestRegistrationAndKeyExchange(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")
	alice.expect(userListWith("Alice"))

	bob := dialClient(t, addr)
	bob.register("Bob")

	// Bob receives exactly one KEY_EXCHANGE, for Alice.
	env := bob.expect(isType(wire.TypeKeyExchange))
	require.Equal(t, "Alice", env.Fields[0])
	require.Equal(t, crypto.ExportPublic(alice.keys.Public), env.Fields[1])
	bob.expectNone(wire.TypeKeyExchange, 200*time.Millisecond)

	// Alice receives Bob's key and none for herself.
	env = alice.expect(isKeyExchangeFor("Bob"))
	require.Equal(t, crypto.ExportPublic(bob.keys.Public), env.Fields[1])
	alice.expectNone(wire.TypeKeyExchange, 200*time.Millisecond)
}

func TestUserListBroadcastOnJoinAndLeave(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")

	bob := dialClient(t, addr)
	bob.register("Bob")

	alice.expect(userListWith("Alice", "Bob"))
	bob.expect(userListWith("Alice", "Bob"))

	bob.conn.Close()
	alice.expect(userListWith("Alice"))
}

func TestBroadcastExcludesSender(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")
	bob := dialClient(t, addr)
	bob.register("Bob")
	carol := dialClient(t, addr)
	carol.register("Carol")

	// Let registration fan-out settle so the payload is unambiguous.
	carol.expect(userListWith("Alice", "Bob", "Carol"))

	alice.send(wire.New(wire.TypeBroadcast, "opaque-broadcast-payload"))

	for _, c := range []*testClient{bob, carol} {
		env := c.expect(isType(wire.TypeBroadcast))
		require.Equal(t, []string{"Alice", "opaque-broadcast-payload"}, env.Fields)
	}
	alice.expectNone(wire.TypeBroadcast, 200*time.Millisecond)
}

func TestMessageUnicast(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")
	bob := dialClient(t, addr)
	bob.register("Bob")
	carol := dialClient(t, addr)
	carol.register("Carol")

	alice.send(wire.New(wire.TypeMessage, "Bob", "opaque-direct-payload"))

	env := bob.expect(isType(wire.TypeMessage))
	require.Equal(t, []string{"Alice", "opaque-direct-payload"}, env.Fields)
	carol.expectNone(wire.TypeMessage, 200*time.Millisecond)
}

func TestMessageToOfflineRecipientDropped(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")
	bob := dialClient(t, addr)
	bob.register("Bob")

	bob.conn.Close()
	alice.expect(userListWith("Alice"))

	// Dropped silently: no error back, relay keeps routing.
	alice.send(wire.New(wire.TypeMessage, "Bob", "into-the-void"))

	carol := dialClient(t, addr)
	carol.register("Carol")
	alice.send(wire.New(wire.TypeMessage, "Carol", "still-routing"))

	env := carol.expect(isType(wire.TypeMessage))
	require.Equal(t, []string{"Alice", "still-routing"}, env.Fields)
}

func TestMalformedAuthRejected(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	// Missing the public key field entirely.
	bad := dialClient(t, addr)
	_, err := bad.conn.Write([]byte("AUTH||NoKeyGiven" + wire.Delimiter))
	require.NoError(t, err)

	line := bad.readLine()
	require.True(t, strings.HasPrefix(line, wire.AuthErrPrefix), "got %q", line)

	// The relay keeps accepting new connections.
	alice := dialClient(t, addr)
	alice.register("Alice")
}

func TestInvalidUsernameRejected(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	c := dialClient(t, addr)
	c.sendAuth("x", crypto.ExportPublic(c.keys.Public))

	line := c.readLine()
	require.True(t, strings.HasPrefix(line, wire.AuthErrPrefix), "got %q", line)
}

func TestDuplicateIdentityRejected(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")

	imposter := dialClient(t, addr)
	imposter.sendAuth("Alice", crypto.ExportPublic(imposter.keys.Public))

	line := imposter.readLine()
	require.Contains(t, line, "already taken")

	// The original registration survives.
	_, ok := srv.Directory().Lookup("Alice")
	require.True(t, ok)
}

func TestRegistrationAckPrecedesFanOut(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	// Many simultaneous joins: each client must read SUCCESS before any
	// USER_LIST or KEY_EXCHANGE triggered by its peers' registrations.
	const n = 8
	var wg sync.WaitGroup
	firstFrames := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				firstFrames <- err.Error()
				return
			}
			defer conn.Close()

			keys, err := crypto.GenerateKeyPair()
			if err != nil {
				firstFrames <- err.Error()
				return
			}
			auth := wire.New(wire.TypeAuth, fmt.Sprintf("user_%02d", i), crypto.ExportPublic(keys.Public))
			if _, err := conn.Write(auth.Encode()); err != nil {
				firstFrames <- err.Error()
				return
			}

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			frame, err := wire.NewReader(conn, 0).Next()
			if err != nil {
				firstFrames <- err.Error()
				return
			}
			firstFrames <- string(frame)
		}(i)
	}
	wg.Wait()
	close(firstFrames)

	for frame := range firstFrames {
		require.Equal(t, wire.AuthOK, frame)
	}
	require.Equal(t, n, srv.Directory().Len())
}

func TestDisconnectEnvelope(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := dialClient(t, addr)
	alice.register("Alice")
	bob := dialClient(t, addr)
	bob.register("Bob")

	// Settle the join fan-out so the post-disconnect list is unambiguous.
	alice.expect(userListWith("Alice", "Bob"))

	bob.send(wire.New(wire.TypeDisconnect))
	alice.expect(userListWith("Alice"))
	require.Equal(t, 1, srv.Directory().Len())
}
