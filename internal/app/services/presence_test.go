package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRooms(t *testing.T) {
	p := NewPresence()
	p.AddConnection("alice", "Alice Adams", "conn1")
	p.AddConnection("bob", "Bob Brown", "conn2")

	p.JoinRoom("alice", "team1")
	p.JoinRoom("bob", "team1")
	p.JoinRoom("alice", "team2")

	online := p.ListOnlineInRoom("team1")
	assert.Len(t, online, 2)
	assert.Equal(t, "alice", online[0].UserID)
	assert.Equal(t, "Alice Adams", online[0].UserName)
	assert.Equal(t, "bob", online[1].UserID)

	p.LeaveRoom("bob", "team1")
	online = p.ListOnlineInRoom("team1")
	assert.Len(t, online, 1)
	assert.Equal(t, "alice", online[0].UserID)
}

func TestPresenceDisconnectFanOut(t *testing.T) {
	p := NewPresence()
	p.AddConnection("alice", "Alice Adams", "conn1")
	p.JoinRoom("alice", "team2")
	p.JoinRoom("alice", "team1")
	p.SetTyping("team1", "alice")

	rooms := p.RemoveConnection("alice", "conn1")
	assert.Equal(t, []string{"team1", "team2"}, rooms)
	assert.Empty(t, p.ListOnlineInRoom("team1"))
	assert.Empty(t, p.TypingIn("team1"))
}

func TestPresenceStaleDisconnectIgnored(t *testing.T) {
	p := NewPresence()
	p.AddConnection("alice", "Alice Adams", "conn1")
	p.JoinRoom("alice", "team1")

	// A reconnect replaces the entry; the old connection's teardown
	// must not remove the new one.
	p.AddConnection("alice", "Alice Adams", "conn2")
	p.JoinRoom("alice", "team1")

	rooms := p.RemoveConnection("alice", "conn1")
	assert.Nil(t, rooms)
	assert.Len(t, p.ListOnlineInRoom("team1"), 1)
}

func TestPresenceTyping(t *testing.T) {
	p := NewPresence()
	p.AddConnection("alice", "Alice Adams", "conn1")
	p.AddConnection("bob", "Bob Brown", "conn2")
	p.JoinRoom("alice", "team1")
	p.JoinRoom("bob", "team1")

	p.SetTyping("team1", "bob")
	p.SetTyping("team1", "alice")
	assert.Equal(t, []string{"alice", "bob"}, p.TypingIn("team1"))

	assert.True(t, p.ClearTyping("team1", "alice"))
	assert.False(t, p.ClearTyping("team1", "alice"))
	assert.Equal(t, []string{"bob"}, p.TypingIn("team1"))

	// Leaving the room ends the indicator too.
	p.LeaveRoom("bob", "team1")
	assert.Empty(t, p.TypingIn("team1"))
}
