// Package server exposes the relay's HTTP handlers: WebSocket upgrades, a
// health check, and the paginated room history endpoint.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/chatrelay/chatrelay/internal/chat"
)

// NewWebSocketHandler returns the upgrade handler for the relay's push
// channel. It validates the method and origin, upgrades the connection,
// and registers a new client with the hub; the hub launches the pumps.
func NewWebSocketHandler(hub *Hub, cfg *Config, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	checker := newOriginChecker(cfg.AllowedOrigins, logger)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checker.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		hub.Register(NewClient(conn, hub, r.RemoteAddr, cfg))
	}
}

// HealthHandler provides a simple health check endpoint.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running!")
}

// NewMessagesHandler returns the room history endpoint, used for initial page
// loads independent of the push channel. Messages come back newest-first;
// page 1 is the most recent slice.
func NewMessagesHandler(engine *chat.Engine, cfg *Config, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		room := mux.Vars(r)["room"]
		if room == "" {
			http.Error(w, "room is required", http.StatusBadRequest)
			return
		}

		page := parseQueryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		limit := clampPageSize(parseQueryInt(r, "limit", cfg.History.DefaultPageSize), cfg.History)

		messages := engine.Page(room, page, limit)

		w.Header().Set("Content-Type", "application/json")
		response := chat.MessagesPage{Messages: messages, Page: page, PageSize: limit}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Warn("encode history response", "room", room, "error", err)
		}
	}
}

func parseQueryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
