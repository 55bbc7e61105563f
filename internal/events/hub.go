package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds how long a slow websocket client may stall its writer.
const writeTimeout = 200 * time.Millisecond

// clientBuffer is the number of events queued per client before it is
// considered too slow and dropped.
const clientBuffer = 16

// client owns the only goroutine that writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts punch events to connected websocket clients. Publish is
// safe to call from many goroutines.
type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]*client
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		conns:  make(map[*websocket.Conn]*client),
		logger: logger,
	}
}

// Add registers a client and starts its writer.
func (h *Hub) Add(c *websocket.Conn) {
	cl := &client{conn: c, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		h.mu.Unlock()
		return
	}
	h.conns[c] = cl
	h.mu.Unlock()

	go h.writePump(cl)
}

// Remove unregisters a client and stops its writer.
func (h *Hub) Remove(c *websocket.Conn) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *websocket.Conn) {
	cl, ok := h.conns[c]
	if !ok {
		return
	}
	delete(h.conns, c)
	close(cl.send)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish queues e as JSON for every client without blocking. A client
// whose queue is full is closed and dropped; that is not reported as an
// error.
func (h *Hub) Publish(e PunchEvent) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c, cl := range h.conns {
		select {
		case cl.send <- msg:
		default:
			h.logger.Debug("dropping slow websocket client", "remote", c.RemoteAddr().String())
			h.removeLocked(c)
			_ = c.Close()
		}
	}
	return nil
}

func (h *Hub) writePump(cl *client) {
	for msg := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("dropping websocket client", "remote", cl.conn.RemoteAddr().String(), "error", err)
			_ = cl.conn.Close()
			h.Remove(cl.conn)
		}
	}
}
