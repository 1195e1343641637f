package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers an encoded frame to one connection, wherever it lives.
type Sender interface {
	Send(ctx context.Context, connID string, frame []byte) error
}

// Client is one local socket's outbound queue.
type Client struct {
	ID     string
	UserID string
	send   chan []byte
}

// Outbound returns the frames queued for the socket. It is closed on detach.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Hub owns the connections attached to this process.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	logger  *zap.Logger
}

// NewHub creates a hub whose clients queue at most buffer frames.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), buffer: buffer, logger: logger}
}

// Attach registers a new local connection for userID.
func (h *Hub) Attach(userID string) *Client {
	client := &Client{ID: uuid.NewString(), UserID: userID, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	return client
}

// Detach removes the connection and closes its queue.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		close(client.send)
	}
	h.mu.Unlock()
}

// Len returns the number of local connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver queues frame for a local connection without blocking. It reports
// false when the connection is unknown here or its queue is full.
func (h *Hub) Deliver(connID string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	select {
	case client.send <- frame:
		return true
	default:
		h.logger.Debug("realtime frame dropped", zap.String("conn_id", connID), zap.String("user_id", client.UserID))
		return false
	}
}

// Send implements Sender for single-node deployments.
func (h *Hub) Send(_ context.Context, connID string, frame []byte) error {
	h.Deliver(connID, frame)
	return nil
}
