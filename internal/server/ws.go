package server

import (
	"log/slog"
	"net/http"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/logging"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// PunchesHandler streams punch events to websocket clients.
type PunchesHandler struct {
	hub    *events.Hub
	logger *slog.Logger
}

// NewPunchesHandler creates a PunchesHandler that registers clients with hub.
func NewPunchesHandler(hub *events.Hub, logger *slog.Logger) *PunchesHandler {
	return &PunchesHandler{hub: hub, logger: logging.OrDiscard(logger)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PunchesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.hub.Add(conn)
	defer h.hub.Remove(conn)
	h.logger.Debug("punch client connected", "remote", conn.RemoteAddr().String())

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
