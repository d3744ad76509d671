// Package server wires the relay's HTTP handlers into a router.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter configures and returns the relay's router: health check,
// WebSocket endpoint, and room history.
func NewRouter(hub *Hub, cfg *Config, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", NewWebSocketHandler(hub, cfg, logger))
	r.HandleFunc("/rooms/{room}/messages", NewMessagesHandler(hub.Engine(), cfg, logger)).Methods(http.MethodGet)
	return r
}
