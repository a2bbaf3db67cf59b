// Package live pushes dashboard events over a single WebSocket. The
// dashboard is a singleton client; a new connection replaces the old one.
package live

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"workhub/internal/model"
)

const writeWait = 10 * time.Second

// Hub holds at most one dashboard connection. Publish is a no-op while no
// dashboard is attached; events are not queued.
type Hub struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewHub() *Hub {
	return &Hub{}
}

// Attach makes conn the active dashboard, closing any previous connection.
func (h *Hub) Attach(conn *websocket.Conn) {
	h.mu.Lock()
	prev := h.conn
	h.conn = conn
	h.mu.Unlock()
	if prev != nil {
		prev.Close()
		log.Printf("[live] dashboard replaced")
	}
}

// Detach clears conn if it is still the active dashboard. A connection
// replaced by a newer Attach leaves the newer one in place.
func (h *Hub) Detach(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
	conn.Close()
}

// Publish writes the event to the dashboard if one is attached. A write
// failure drops the connection.
func (h *Hub) Publish(e model.LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return
	}
	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := h.conn.WriteJSON(e); err != nil {
		log.Printf("[live] write failed, dropping dashboard: %v", err)
		h.conn.Close()
		h.conn = nil
	}
}

// Connected reports whether a dashboard is currently attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}
