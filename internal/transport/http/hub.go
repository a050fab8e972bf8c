package http

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"volsim/internal/operations"
)

// Hub fans operation progress events out to connected websocket
// clients. It implements operations.ProgressSink; Publish never blocks
// the pipeline; slow clients are disconnected.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan operations.Event
}

// NewHub creates a progress hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		// Nil CheckOrigin leaves gorilla's default same-origin check in
		// place; SetAllowAllOrigins opts out.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]chan operations.Event),
	}
}

// SetAllowAllOrigins disables the same-origin check on websocket
// upgrades, for deployments where the progress consumer is served from
// a different host. Call before the hub starts accepting connections.
func (h *Hub) SetAllowAllOrigins(allow bool) {
	if allow {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	} else {
		h.upgrader.CheckOrigin = nil
	}
}

// Publish implements operations.ProgressSink.
func (h *Hub) Publish(event operations.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			// Client can't keep up; drop it.
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

// ServeHTTP upgrades the connection and streams events as JSON until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan operations.Event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "progress client connected")

	// Reader goroutine: detect client-side close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			close(ch)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
