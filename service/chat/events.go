package chat

import (
	"context"
	"time"
)

// Publisher ships domain events to a message bus. key groups related events
// (the conversation id) for brokers that partition.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

const EventTypeMessageCreated = "chat.message.created"

// MessageCreatedEvent is published after a message has been stored and
// delivered to the live connections.
type MessageCreatedEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Recipients     []string  `json:"recipients"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	// Delivered lists recipients that had a live connection on this node.
	Delivered []string `json:"delivered"`
}
