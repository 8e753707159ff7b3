package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, userID string) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, sendBufferSize),
		ID:     "conn-" + userID,
		UserID: userID,
		rooms:  make(map[string]struct{}),
	}
}

func register(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
}

func TestHubRoomBroadcast(t *testing.T) {
	h := NewHub()
	go h.Run()

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	eve := newTestClient(h, "eve")
	register(t, h, alice)
	register(t, h, bob)
	register(t, h, eve)

	h.JoinRoom("team1", alice)
	h.JoinRoom("team1", bob)
	h.JoinRoom("team2", eve)
	assert.Equal(t, 2, h.RoomSize("team1"))

	h.BroadcastToRoom("team1", []byte("hello"))

	for _, c := range []*Client{alice, bob} {
		select {
		case payload := <-c.send:
			assert.Equal(t, "hello", string(payload))
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive broadcast", c.UserID)
		}
	}
	select {
	case <-eve.send:
		t.Fatal("client outside the room received the broadcast")
	default:
	}
}

func TestHubLeaveRoom(t *testing.T) {
	h := NewHub()
	go h.Run()

	alice := newTestClient(h, "alice")
	register(t, h, alice)
	h.JoinRoom("team1", alice)
	require.Equal(t, 1, h.RoomSize("team1"))

	h.LeaveRoom("team1", alice)
	assert.Equal(t, 0, h.RoomSize("team1"))

	h.BroadcastToRoom("team1", []byte("hello"))
	select {
	case <-alice.send:
		t.Fatal("client received broadcast after leaving")
	default:
	}
}

func TestHubUnregisterClearsRooms(t *testing.T) {
	h := NewHub()
	go h.Run()

	alice := newTestClient(h, "alice")
	register(t, h, alice)
	h.JoinRoom("team1", alice)

	select {
	case h.unregister <- alice:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept unregistration")
	}

	// The unregister is processed asynchronously.
	deadline := time.After(time.Second)
	for h.RoomSize("team1") != 0 {
		select {
		case <-deadline:
			t.Fatal("room was not cleaned up")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, open := <-alice.send
	assert.False(t, open)
}

func TestHubDropsSlowClientWithoutPanic(t *testing.T) {
	h := NewHub()
	go h.Run()

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	register(t, h, alice)
	register(t, h, bob)
	h.JoinRoom("team1", alice)
	h.JoinRoom("team1", bob)

	// Saturate bob's buffer without draining it.
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, bob.Send([]byte("backlog")))
	}
	require.False(t, bob.Send([]byte("overflow")))

	h.BroadcastToRoom("team1", []byte("hello"))

	// Bob is dropped; the room keeps working for alice.
	assert.Equal(t, 1, h.RoomSize("team1"))

	// A dispatch error reply racing the drop must be a no-op, not a
	// panic on a closed channel.
	bob.SendEvent(eventError, errorPayload{Message: "late reply"})
	assert.False(t, bob.Send([]byte("late")))

	drained := 0
	for {
		if _, open := <-bob.send; !open {
			break
		}
		drained++
	}
	assert.Equal(t, sendBufferSize, drained)

	h.BroadcastToRoom("team1", []byte("again"))
	for i := 0; i < 2; i++ {
		select {
		case payload := <-alice.send:
			assert.NotEmpty(t, payload)
		case <-time.After(time.Second):
			t.Fatal("alice stopped receiving after the drop")
		}
	}
}

func TestHubBroadcastExceptSkipsActor(t *testing.T) {
	h := NewHub()
	go h.Run()

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	register(t, h, alice)
	register(t, h, bob)
	h.JoinRoom("team1", alice)
	h.JoinRoom("team1", bob)

	h.BroadcastToRoomExcept("team1", alice, []byte("from-alice"))

	select {
	case payload := <-bob.send:
		assert.Equal(t, "from-alice", string(payload))
	case <-time.After(time.Second):
		t.Fatal("peer did not receive the broadcast")
	}
	select {
	case <-alice.send:
		t.Fatal("actor received its own broadcast")
	default:
	}
}

func TestHubJoinRequiresRegistration(t *testing.T) {
	h := NewHub()
	go h.Run()

	ghost := newTestClient(h, "ghost")
	h.JoinRoom("team1", ghost)
	assert.Equal(t, 0, h.RoomSize("team1"))
}
