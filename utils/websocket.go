package utils

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketHub fans events out to every connected monitor client.
type WebSocketHub struct {
	clients map[string]*websocket.Conn
	mu      sync.Mutex
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients: make(map[string]*websocket.Conn),
	}
}

// AddClient registers a connection and returns its client ID.
func (h *WebSocketHub) AddClient(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = conn
	return id
}

func (h *WebSocketHub) RemoveClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.clients[id]; ok {
		delete(h.clients, id)
		conn.Close()
	}
}

// Broadcast sends the event to every client. Slow or failed clients are
// evicted so one stuck browser tab cannot stall the notification stream.
func (h *WebSocketHub) Broadcast(event WebSocketEvent) {
	h.mu.Lock()
	clients := make(map[string]*websocket.Conn, len(h.clients))
	for id, conn := range h.clients {
		clients[id] = conn
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	var failed []string
	var failedMu sync.Mutex

	for id, conn := range clients {
		wg.Add(1)
		go func(id string, c *websocket.Conn) {
			defer wg.Done()

			c.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
			if err := c.WriteJSON(event); err != nil {
				failedMu.Lock()
				failed = append(failed, id)
				failedMu.Unlock()
			}
		}(id, conn)
	}

	wg.Wait()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, id := range failed {
			if conn, ok := h.clients[id]; ok {
				delete(h.clients, id)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}

// ClientCount reports the number of connected monitor clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
