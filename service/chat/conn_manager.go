package chat

import (
	"errors"
	"sync"

	"PSocial/logger"

	"go.uber.org/zap"
)

var (
	ErrConnNotFound = errors.New("connection not found")
	ErrQueueFull    = errors.New("connection send queue full")
)

// ConnManager indexes the live clients of this process by connection id.
type ConnManager struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewConnManager() *ConnManager {
	return &ConnManager{clients: make(map[string]*Client)}
}

func (m *ConnManager) Add(c *Client) {
	if c == nil || c.ConnID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ConnID] = c
}

func (m *ConnManager) Get(connID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[connID]
	return c, ok
}

// Remove drops and closes the client. Unknown ids are a no-op.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	c, ok := m.clients[connID]
	delete(m.clients, connID)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Push queues frame for connID without blocking. A slow client loses the
// frame rather than stalling the sender.
func (m *ConnManager) Push(connID string, frame []byte) error {
	c, ok := m.Get(connID)
	if !ok {
		return ErrConnNotFound
	}
	if !c.Enqueue(frame) {
		logger.Warn("[conn] drop frame", zap.String("conn", connID), zap.String("user", c.UserID))
		return ErrQueueFull
	}
	return nil
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CloseAll closes every client; their writers send a close frame and exit.
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	all := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
}
