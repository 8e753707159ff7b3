package ws

import (
	"sync"
)

// Hub tracks connected clients and their room memberships and fans
// payloads out to rooms. Room membership here is transport-level; the
// gateway authorizes joins before calling JoinRoom.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
	}
}

// Run processes register and unregister requests until the channel
// owner stops producing. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				for room := range c.rooms {
					h.removeFromRoomLocked(room, c)
				}
				c.closeSend()
			}
			h.mu.Unlock()
		}
	}
}

// JoinRoom subscribes the client to a room's broadcasts.
func (h *Hub) JoinRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// LeaveRoom unsubscribes the client from a room.
func (h *Hub) LeaveRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(room, c)
	delete(c.rooms, room)
}

func (h *Hub) removeFromRoomLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// BroadcastToRoom delivers a payload to every client in the room. A
// client with a full send buffer is dropped rather than allowed to
// stall the room.
func (h *Hub) BroadcastToRoom(room string, payload []byte) {
	h.broadcast(room, nil, payload)
}

// BroadcastToRoomExcept delivers a payload to every client in the room
// other than skip.
func (h *Hub) BroadcastToRoomExcept(room string, skip *Client, payload []byte) {
	h.broadcast(room, skip, payload)
}

func (h *Hub) broadcast(room string, skip *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		if c == skip {
			continue
		}
		if c.Send(payload) {
			continue
		}
		h.dropLocked(c)
	}
}

// dropLocked removes a client that can no longer keep up. Closing the
// send channel makes the write pump exit and close the connection; the
// read pump then runs the normal disconnect path.
func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	for r := range c.rooms {
		h.removeFromRoomLocked(r, c)
	}
	c.closeSend()
}

// RoomSize reports how many clients are subscribed to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
