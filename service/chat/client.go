package chat

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents one websocket connected to the gateway.
// UserID is the handshake identity and is empty for anonymous connections.
type Client struct {
	ConnID string          // unique within this process
	UserID string          // from the handshake, may be empty
	WS     *websocket.Conn // nil in tests that only exercise queuing
	Send   chan []byte     // outbound queue, drained by a single writer goroutine

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 1
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue never blocks. It reports false when the client is closed or its
// queue is full.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close stops the writer. Send is left open so late Enqueue calls are safe.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}
