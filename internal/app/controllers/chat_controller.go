package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/app/services"
	"github.com/evently/evently-api/internal/domain/chat"
	"github.com/evently/evently-api/internal/domain/team"
	"github.com/evently/evently-api/internal/platform/middleware"
)

// MessageBroadcaster pushes persisted messages to connected chat
// clients. Implemented by the websocket gateway.
type MessageBroadcaster interface {
	BroadcastNewMessage(teamID string, msg *chat.Message)
}

type ChatController struct {
	service   services.ChatService
	teams     services.TeamService
	broadcast MessageBroadcaster
}

func NewChatController(s services.ChatService, teams services.TeamService, b MessageBroadcaster) *ChatController {
	return &ChatController{service: s, teams: teams, broadcast: b}
}

// History returns a chronological page of the team's messages.
// Query params: limit (default 100), before (RFC 3339, exclusive).
func (c *ChatController) History(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := mux.Vars(r)["teamId"]
	if _, err := c.teams.AuthorizeChat(r.Context(), team.ID(teamID), identity.ID); err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}

	q := chat.HistoryQuery{TeamID: teamID}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("before"); v != "" {
		before, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("before must be an RFC 3339 timestamp"))
			return
		}
		q.Before = before
	}

	messages, err := c.service.History(r.Context(), q)
	if err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// MarkRead appends read receipts for a batch of messages. Repeating a
// message id is a no-op, never an error.
func (c *ChatController) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := mux.Vars(r)["teamId"]
	if _, err := c.teams.AuthorizeChat(r.Context(), team.ID(teamID), identity.ID); err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}

	var body struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := c.service.MarkRead(r.Context(), teamID, body.MessageIDs, identity.ID)
	if err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UnreadCount reports how many messages the caller has not read yet.
func (c *ChatController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := mux.Vars(r)["teamId"]
	if _, err := c.teams.AuthorizeChat(r.Context(), team.ID(teamID), identity.ID); err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}
	count, err := c.service.UnreadCount(r.Context(), teamID, identity.ID)
	if err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unreadCount": count})
}

// Delete soft-deletes a message; sender only.
func (c *ChatController) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	messageID := mux.Vars(r)["messageId"]
	if err := c.service.Delete(r.Context(), messageID, identity.ID); err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

// Upload stores a multipart attachment and creates the file message.
func (c *ChatController) Upload(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := mux.Vars(r)["teamId"]
	if _, err := c.teams.AuthorizeChat(r.Context(), team.ID(teamID), identity.ID); err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}

	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file field is required"))
		return
	}
	defer file.Close()

	msg, err := c.service.Upload(r.Context(), identity.ID, teamID, file, header)
	if err != nil {
		writeError(w, mapChatStatus(err), err)
		return
	}
	if c.broadcast != nil {
		c.broadcast.BroadcastNewMessage(teamID, msg)
	}
	writeJSON(w, http.StatusCreated, msg)
}

func mapChatStatus(err error) int {
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTeamAccessDenied),
		errors.Is(err, services.ErrNotMessageSender):
		return http.StatusForbidden
	case errors.Is(err, services.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrFileTooLarge),
		errors.Is(err, services.ErrFileTypeForbidden),
		errors.Is(err, ErrInvalidParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
