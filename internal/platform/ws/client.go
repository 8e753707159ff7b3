package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 << 10

	sendBufferSize = 32
)

// Envelope is the framing for every message on the wire, both
// directions: an event name and a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one websocket connection bound to an authenticated
// participant. rooms is owned by the hub and only touched under its
// lock.
type Client struct {
	hub     *Hub
	gateway *Gateway
	conn    *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	ID       string
	UserID   string
	UserName string

	rooms map[string]struct{}
}

// Send queues a pre-encoded payload. It reports false when the buffer
// is full or the client has been closed; it never blocks the caller
// and never panics on a closed client.
func (c *Client) Send(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. The read pump may
// still be live afterwards; its sends become no-ops.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SendEvent encodes and queues one event for this client only.
func (c *Client) SendEvent(event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		return
	}
	c.Send(payload)
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// readPump pumps inbound frames from the connection to the gateway's
// event dispatcher. It owns all reads on the connection.
func (c *Client) readPump() {
	defer func() {
		c.gateway.handleDisconnect(c)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.gateway.log.Warnw("websocket read error", "userId", c.UserID, "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.SendEvent(eventError, errorPayload{Message: "malformed message"})
			continue
		}
		c.gateway.dispatch(c, env)
	}
}

// writePump pumps queued payloads to the connection and keeps the
// connection alive with pings. It owns all writes on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
