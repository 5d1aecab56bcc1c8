package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// fakeConn records written frames.
type fakeConn struct {
	mu       sync.Mutex
	frames   []string
	closed   bool
	writeErr error
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// roomsOf returns the rooms clientID is subscribed to.
func roomsOf(h *Hub, clientID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var rooms []string
	for room := range h.memberships[clientID] {
		rooms = append(rooms, room)
	}
	return rooms
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub
}

func connect(t *testing.T, hub *Hub, id string) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	client := NewClient(id, id, conn, 16)
	go func() { _ = client.WritePump() }()
	require.NoError(t, hub.Register(client))
	return client, conn
}

func TestHub_RoomIsolation(t *testing.T) {
	hub := startHub(t)
	_, alice := connect(t, hub, "alice")
	_, bob := connect(t, hub, "bob")

	require.NoError(t, hub.Subscribe("alice", "general"))
	require.NoError(t, hub.Subscribe("bob", "random"))

	hub.Broadcast("general", map[string]string{"content": "hi"})
	hub.Broadcast("random", map[string]string{"content": "yo"})

	assert.Eventually(t, func() bool { return len(alice.Frames()) == 1 && len(bob.Frames()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"content":"hi"}`}, alice.Frames())
	assert.Equal(t, []string{`{"content":"yo"}`}, bob.Frames())
}

func TestHub_MultipleRooms(t *testing.T) {
	hub := startHub(t)
	_, conn := connect(t, hub, "alice")

	require.NoError(t, hub.Subscribe("alice", "general"))
	require.NoError(t, hub.Subscribe("alice", "random"))
	assert.ElementsMatch(t, []string{"general", "random"}, roomsOf(hub, "alice"))
	assert.Equal(t, 2, hub.RoomCount())

	hub.Broadcast("general", "a")
	hub.Broadcast("random", "b")

	assert.Eventually(t, func() bool { return len(conn.Frames()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`"a"`, `"b"`}, conn.Frames())
}

func TestHub_PreservesSubmissionOrder(t *testing.T) {
	hub := startHub(t)
	_, conn := connect(t, hub, "alice")
	require.NoError(t, hub.Subscribe("alice", "general"))

	for i := 0; i < 10; i++ {
		hub.Broadcast("general", i)
	}

	assert.Eventually(t, func() bool { return len(conn.Frames()) == 10 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, conn.Frames())
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := startHub(t)
	_, alice := connect(t, hub, "alice")
	_, bob := connect(t, hub, "bob")

	hub.BroadcastAll("presence")

	assert.Eventually(t, func() bool { return len(alice.Frames()) == 1 && len(bob.Frames()) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestHub_UnregisterDropsAllRooms(t *testing.T) {
	hub := startHub(t)
	client, conn := connect(t, hub, "alice")
	require.NoError(t, hub.Subscribe("alice", "general"))
	require.NoError(t, hub.Subscribe("alice", "random"))

	hub.Unregister(client)

	// Unregister returns only once the client is gone and its conn closed.
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.RoomCount())
	assert.Empty(t, roomsOf(hub, "alice"))
	assert.True(t, conn.Closed())
	select {
	case <-client.Done():
	default:
		t.Fatal("Done() not closed after Unregister")
	}
}

func TestHub_UnregisterAfterStop(t *testing.T) {
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	hub.Wait()

	conn := &fakeConn{}
	client := NewClient("alice", "alice", conn, 4)
	hub.Unregister(client)
	assert.True(t, conn.Closed())
}

func TestHub_ConcurrentUnregister(t *testing.T) {
	hub := startHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		client, conn := connect(t, hub, fmt.Sprintf("client-%d", i))
		require.NoError(t, hub.Subscribe(client.ID(), "general"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast("general", "tick")
			hub.Unregister(client)
			assert.True(t, conn.Closed())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_SubscribeUnknownClient(t *testing.T) {
	hub := startHub(t)
	assert.Error(t, hub.Subscribe("ghost", "general"))
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	conn := &fakeConn{}
	// No write pump, so the queue fills up.
	client := NewClient("slow", "slow", conn, 1)
	require.NoError(t, hub.Register(client))
	require.NoError(t, hub.Subscribe("slow", "general"))

	hub.Broadcast("general", "first")
	hub.Broadcast("general", "second")

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, conn.Closed())
	assert.False(t, client.Send([]byte("late")))
}

func TestHub_StoppedHub(t *testing.T) {
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	_, conn := connect(t, hub, "alice")
	cancel()
	hub.Wait()

	assert.True(t, conn.Closed())
	assert.ErrorIs(t, hub.Register(NewClient("bob", "bob", &fakeConn{}, 1)), ErrHubStopped)
	assert.ErrorIs(t, hub.Subscribe("alice", "general"), ErrHubStopped)
	hub.Broadcast("general", "ignored")
}

func TestClient_WriteFailureCloses(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	client := NewClient("alice", "alice", conn, 4)

	require.True(t, client.Send([]byte("x")))
	err := client.WritePump()

	assert.Error(t, err)
	assert.True(t, conn.Closed())
	select {
	case <-client.Done():
	default:
		t.Fatal("Done() not closed after write failure")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client := NewClient("alice", "alice", &fakeConn{}, 4)
	client.Close()
	client.Close()
	assert.False(t, client.Send([]byte("x")))
}

func TestModule_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewModule(&mockLogger{})
	assert.Equal(t, "broadcast", m.Name())

	require.NoError(t, m.Start(ctx))
	_, _ = connect(t, m.Hub(), "alice")

	require.NoError(t, m.Hub().Subscribe("alice", "general"))

	status := m.Health(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.Details["connected_clients"])
	assert.Equal(t, 1, status.Details["rooms"])

	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, 0, m.Hub().ClientCount())
}

func TestHub_SendTargetsOneClient(t *testing.T) {
	hub := startHub(t)
	_, alice := connect(t, hub, "alice")
	_, bob := connect(t, hub, "bob")

	hub.Send("alice", "only-alice")
	hub.BroadcastAll("everyone")

	assert.Eventually(t, func() bool { return len(alice.Frames()) == 2 && len(bob.Frames()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`"only-alice"`, `"everyone"`}, alice.Frames())
	assert.Equal(t, []string{`"everyone"`}, bob.Frames())
}
