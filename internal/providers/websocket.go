package providers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"engagement-service/internal/logging"
)

const (
	maxConnections = 50
	writeWait      = 5 * time.Second
)

// Hub pushes notifications to every connected dashboard.
type Hub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	// sendMu serializes broadcasts; a websocket.Conn allows one writer at a time.
	sendMu    sync.Mutex
	writeWait time.Duration
	logger    *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		writeWait:   writeWait,
		logger:      logger,
	}
}

// AddConnection registers a dashboard connection; it reports false when the hub is full.
func (h *Hub) AddConnection(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxConnections {
		h.logger.Warnf("Max WebSocket connections reached (%d)", maxConnections)
		return false
	}
	h.connections[conn] = true
	h.logger.Infof("Added WebSocket connection (total: %d)", len(h.connections))
	return true
}

func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		h.logger.Infof("Removed WebSocket connection (remaining: %d)", len(h.connections))
	}
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

type wsMessage struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Send broadcasts to all connections. Each write is bounded by the hub's write deadline and
// the connection set is not locked while writing. Broken or stalled connections are dropped;
// no listener is not an error.
func (h *Hub) Send(_ context.Context, title, body string) error {
	payload, err := json.Marshal(wsMessage{Title: title, Body: body, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mutex.Lock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mutex.Unlock()

	for _, conn := range conns {
		err := conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, payload)
		}
		if err != nil {
			h.logger.Errorf("Failed to send WebSocket message: %v", err)
			_ = conn.Close()
			h.RemoveConnection(conn)
		}
	}
	return nil
}
