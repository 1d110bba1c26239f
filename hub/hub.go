package hub

import (
	"log/slog"
	"sync"

	"lifesync-server/domain"
)

type Hub struct {
	clients map[string]domain.Connection
	mu      sync.RWMutex
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]domain.Connection),
	}
}

func (h *Hub) Register(conn domain.Connection) {
	h.mu.Lock()
	h.clients[conn.ID()] = conn
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", conn.ID(), "clients", count)
}

func (h *Hub) Unregister(conn domain.Connection) {
	h.mu.Lock()
	if _, exists := h.clients[conn.ID()]; !exists {
		h.mu.Unlock()
		return
	}
	delete(h.clients, conn.ID())
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client disconnected", "clientId", conn.ID(), "clients", count)
}

// Broadcast sends data to every registered connection that is still open.
// A connection that cannot take the frame is dropped instead of blocking
// the others.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.clients {
		if conn.State() == domain.StateClosed {
			continue
		}
		if err := conn.Send(data); err != nil {
			slog.Warn("dropping client", "clientId", conn.ID(), "error", err)
			go func(c domain.Connection) {
				h.Unregister(c)
				c.Close()
			}(conn)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
