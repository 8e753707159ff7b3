package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/app/services"
	"github.com/evently/evently-api/internal/domain/chat"
	"github.com/evently/evently-api/internal/domain/team"
	"github.com/evently/evently-api/internal/platform/middleware"
	"github.com/evently/evently-api/pkg/logger"
)

// Client-to-server events.
const (
	eventJoinTeam    = "join-team"
	eventLeaveTeam   = "leave-team"
	eventSendMessage = "send-message"
	eventTypingStart = "typing-start"
	eventTypingStop  = "typing-stop"
	eventMessageRead = "message-read"
)

// Server-to-client events.
const (
	eventUserJoined        = "user-joined"
	eventUserLeft          = "user-left"
	eventOnlineUsers       = "online-users"
	eventNewMessage        = "new-message"
	eventTypingUpdate      = "typing-update"
	eventMessageReadUpdate = "message-read-update"
	eventError             = "error"
)

const handlerTimeout = 10 * time.Second

type roomPayload struct {
	TeamID string `json:"teamId"`
}

type sendMessagePayload struct {
	TeamID    string `json:"teamId"`
	Type      string `json:"messageType"`
	Content   string `json:"content"`
	LinkURL   string `json:"linkUrl,omitempty"`
	LinkTitle string `json:"linkTitle,omitempty"`
}

type messageReadPayload struct {
	TeamID    string `json:"teamId"`
	MessageID string `json:"messageId"`
}

type userPresencePayload struct {
	TeamID   string `json:"teamId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type onlineUsersPayload struct {
	TeamID string                `json:"teamId"`
	Users  []services.OnlineUser `json:"users"`
}

type typingUpdatePayload struct {
	TeamID      string   `json:"teamId"`
	TypingUsers []string `json:"typingUsers"`
}

type readUpdatePayload struct {
	TeamID        string    `json:"teamId"`
	MessageID     string    `json:"messageId"`
	ParticipantID string    `json:"participantId"`
	ReadAt        time.Time `json:"readAt"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Gateway upgrades authenticated HTTP requests to websocket sessions
// and translates wire events into team registry, chat and presence
// calls. All persistence happens before any broadcast.
type Gateway struct {
	hub          *Hub
	presence     *services.Presence
	teams        services.TeamService
	chat         services.ChatService
	participants repositories.ParticipantRepository
	secret       string
	log          *logger.Logger
	upgrader     websocket.Upgrader
}

func NewGateway(
	hub *Hub,
	presence *services.Presence,
	teams services.TeamService,
	chatSvc services.ChatService,
	participants repositories.ParticipantRepository,
	secret string,
	log *logger.Logger,
) *Gateway {
	return &Gateway{
		hub:          hub,
		presence:     presence,
		teams:        teams,
		chat:         chatSvc,
		participants: participants,
		secret:       secret,
		log:          log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the handshake and hands the connection to the
// read and write pumps. Browsers cannot set headers on websocket
// requests, so the token may also arrive as a query parameter.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	identity, err := middleware.ParseToken(g.secret, token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		hub:      g.hub,
		gateway:  g,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		ID:       uuid.NewString(),
		UserID:   identity.ID,
		UserName: g.resolveName(r.Context(), identity),
		rooms:    make(map[string]struct{}),
	}
	g.presence.AddConnection(c.UserID, c.UserName, c.ID)
	g.hub.register <- c
	g.log.Infow("websocket connected", "userId", c.UserID, "connId", c.ID)

	go c.writePump()
	go c.readPump()
}

// resolveName looks the participant up in the directory so presence
// rosters carry the registered name even when the token has no name
// claim. The claim is the fallback, not the source of truth.
func (g *Gateway) resolveName(ctx context.Context, identity *middleware.Identity) string {
	if g.participants != nil {
		if p, err := g.participants.GetByID(ctx, identity.ID); err == nil {
			return p.FullName()
		}
	}
	return identity.Name
}

func (g *Gateway) dispatch(c *Client, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch env.Event {
	case eventJoinTeam:
		g.handleJoinTeam(ctx, c, env.Data)
	case eventLeaveTeam:
		g.handleLeaveTeam(c, env.Data)
	case eventSendMessage:
		g.handleSendMessage(ctx, c, env.Data)
	case eventTypingStart:
		g.handleTyping(c, env.Data, true)
	case eventTypingStop:
		g.handleTyping(c, env.Data, false)
	case eventMessageRead:
		g.handleMessageRead(ctx, c, env.Data)
	default:
		c.SendEvent(eventError, errorPayload{Message: "unknown event: " + env.Event})
	}
}

func (g *Gateway) handleJoinTeam(ctx context.Context, c *Client, data json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TeamID == "" {
		c.SendEvent(eventError, errorPayload{Message: "teamId is required"})
		return
	}
	if _, err := g.teams.AuthorizeChat(ctx, team.ID(p.TeamID), c.UserID); err != nil {
		c.SendEvent(eventError, errorPayload{Message: "not a member of this team"})
		return
	}

	g.hub.JoinRoom(p.TeamID, c)
	g.presence.JoinRoom(c.UserID, p.TeamID)

	// The room learns about the joiner; the joiner gets the roster.
	g.broadcastExcept(c, p.TeamID, eventUserJoined, userPresencePayload{
		TeamID: p.TeamID, UserID: c.UserID, UserName: c.UserName,
	})
	c.SendEvent(eventOnlineUsers, onlineUsersPayload{
		TeamID: p.TeamID,
		Users:  g.presence.ListOnlineInRoom(p.TeamID),
	})
}

func (g *Gateway) handleLeaveTeam(c *Client, data json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TeamID == "" {
		c.SendEvent(eventError, errorPayload{Message: "teamId is required"})
		return
	}
	g.leaveRoom(c, p.TeamID)
}

func (g *Gateway) leaveRoom(c *Client, teamID string) {
	wasTyping := g.presence.ClearTyping(teamID, c.UserID)
	g.presence.LeaveRoom(c.UserID, teamID)
	g.hub.LeaveRoom(teamID, c)

	g.broadcastExcept(c, teamID, eventUserLeft, userPresencePayload{
		TeamID: teamID, UserID: c.UserID, UserName: c.UserName,
	})
	if wasTyping {
		g.broadcastTyping(teamID, c)
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.TeamID == "" {
		c.SendEvent(eventError, errorPayload{Message: "teamId is required"})
		return
	}
	if _, err := g.teams.AuthorizeChat(ctx, team.ID(p.TeamID), c.UserID); err != nil {
		c.SendEvent(eventError, errorPayload{Message: "not a member of this team"})
		return
	}

	msg, err := g.chat.Send(ctx, c.UserID, chat.SendMessageInput{
		TeamID:    p.TeamID,
		Type:      chat.MessageType(p.Type),
		Content:   p.Content,
		LinkURL:   p.LinkURL,
		LinkTitle: p.LinkTitle,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			c.SendEvent(eventError, errorPayload{Message: "message content is required"})
		} else {
			g.log.Errorw("send message failed", "teamId", p.TeamID, "error", err)
			c.SendEvent(eventError, errorPayload{Message: "failed to send message"})
		}
		return
	}

	// Sending implicitly ends the typing indicator.
	if g.presence.ClearTyping(p.TeamID, c.UserID) {
		g.broadcastTyping(p.TeamID, c)
	}
	// Everyone including the sender gets the persisted message.
	g.broadcast(p.TeamID, eventNewMessage, msg)
}

func (g *Gateway) handleTyping(c *Client, data json.RawMessage, start bool) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TeamID == "" {
		c.SendEvent(eventError, errorPayload{Message: "teamId is required"})
		return
	}
	if start {
		g.presence.SetTyping(p.TeamID, c.UserID)
	} else if !g.presence.ClearTyping(p.TeamID, c.UserID) {
		return
	}
	g.broadcastTyping(p.TeamID, c)
}

func (g *Gateway) handleMessageRead(ctx context.Context, c *Client, data json.RawMessage) {
	var p messageReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		c.SendEvent(eventError, errorPayload{Message: "messageId is required"})
		return
	}
	appended, err := g.chat.MarkOneRead(ctx, p.MessageID, c.UserID)
	if err != nil {
		c.SendEvent(eventError, errorPayload{Message: "failed to mark message read"})
		return
	}
	if !appended {
		return
	}
	g.broadcastExcept(c, p.TeamID, eventMessageReadUpdate, readUpdatePayload{
		TeamID:        p.TeamID,
		MessageID:     p.MessageID,
		ParticipantID: c.UserID,
		ReadAt:        time.Now().UTC(),
	})
}

// handleDisconnect runs once when the read pump exits, before the hub
// unregisters the client, so room peers still receive the fan-out.
func (g *Gateway) handleDisconnect(c *Client) {
	rooms := g.presence.RemoveConnection(c.UserID, c.ID)
	for _, room := range rooms {
		g.broadcastExcept(c, room, eventUserLeft, userPresencePayload{
			TeamID: room, UserID: c.UserID, UserName: c.UserName,
		})
		g.broadcastTyping(room, c)
	}
	g.log.Infow("websocket disconnected", "userId", c.UserID, "connId", c.ID)
}

// BroadcastNewMessage pushes a message persisted outside the websocket
// path (file uploads) to the team's room.
func (g *Gateway) BroadcastNewMessage(teamID string, msg *chat.Message) {
	g.broadcast(teamID, eventNewMessage, msg)
}

func (g *Gateway) broadcast(teamID, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		g.log.Errorw("encode event failed", "event", event, "error", err)
		return
	}
	g.hub.BroadcastToRoom(teamID, payload)
}

// broadcastExcept reaches the rest of the room, never the actor.
func (g *Gateway) broadcastExcept(c *Client, teamID, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		g.log.Errorw("encode event failed", "event", event, "error", err)
		return
	}
	g.hub.BroadcastToRoomExcept(teamID, c, payload)
}

// broadcastTyping always carries the full typing roster so clients
// replace state instead of merging deltas.
func (g *Gateway) broadcastTyping(teamID string, skip *Client) {
	g.broadcastExcept(skip, teamID, eventTypingUpdate, typingUpdatePayload{
		TeamID:      teamID,
		TypingUsers: g.presence.TypingIn(teamID),
	})
}
