package http

import (
	stdhttp "net/http"

	"github.com/gorilla/mux"

	"github.com/evently/evently-api/internal/app/controllers"
	"github.com/evently/evently-api/internal/platform/middleware"
	"github.com/evently/evently-api/internal/platform/ws"
	"github.com/evently/evently-api/pkg/logger"
)

type RouterConfig struct {
	TeamCtrl  *controllers.TeamController
	ChatCtrl  *controllers.ChatController
	Gateway   *ws.Gateway
	JWTSecret string
	Logger    *logger.Logger
}

func NewRouter(cfg RouterConfig) stdhttp.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(stdhttp.MethodGet)

	// Websocket sessions authenticate during the upgrade handshake, not
	// through the bearer middleware.
	r.Handle("/ws", cfg.Gateway)

	auth := middleware.BearerAuth(cfg.JWTSecret)

	teams := r.PathPrefix("/api/teams").Subrouter()
	teams.Use(auth)
	teams.HandleFunc("/create", cfg.TeamCtrl.Create).Methods(stdhttp.MethodPost)
	teams.HandleFunc("/join/{inviteCode}", cfg.TeamCtrl.ResolveInvite).Methods(stdhttp.MethodGet)
	teams.HandleFunc("/join/{inviteCode}", cfg.TeamCtrl.Join).Methods(stdhttp.MethodPost)
	teams.HandleFunc("/my-teams", cfg.TeamCtrl.ListMine).Methods(stdhttp.MethodGet)
	teams.HandleFunc("/{teamId}", cfg.TeamCtrl.Get).Methods(stdhttp.MethodGet)
	teams.HandleFunc("/{teamId}", cfg.TeamCtrl.Delete).Methods(stdhttp.MethodDelete)
	teams.HandleFunc("/{teamId}/members/{memberId}", cfg.TeamCtrl.RemoveMember).Methods(stdhttp.MethodDelete)
	teams.HandleFunc("/{teamId}/leave", cfg.TeamCtrl.Leave).Methods(stdhttp.MethodPost)

	chat := r.PathPrefix("/api/chat").Subrouter()
	chat.Use(auth)
	chat.HandleFunc("/team/{teamId}/messages", cfg.ChatCtrl.History).Methods(stdhttp.MethodGet)
	chat.HandleFunc("/team/{teamId}/messages/read", cfg.ChatCtrl.MarkRead).Methods(stdhttp.MethodPost)
	chat.HandleFunc("/team/{teamId}/unread-count", cfg.ChatCtrl.UnreadCount).Methods(stdhttp.MethodGet)
	chat.HandleFunc("/team/{teamId}/upload", cfg.ChatCtrl.Upload).Methods(stdhttp.MethodPost)
	chat.HandleFunc("/messages/{messageId}", cfg.ChatCtrl.Delete).Methods(stdhttp.MethodDelete)

	var handler stdhttp.Handler = r
	handler = middleware.Logging(cfg.Logger)(handler)
	handler = middleware.CORS(handler)
	return handler
}
