package model

import "time"

const MessageTableName = "messages"

// Message is immutable once stored; CreatedAt is server assigned and orders
// the messages of a conversation.
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	Sender         string    `bson:"sender" json:"sender"`
	Text           string    `bson:"text" json:"text"`
	ReadBy         []string  `bson:"read_by" json:"readBy"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

