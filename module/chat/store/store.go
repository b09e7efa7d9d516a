package store

import (
	"context"

	"PSocial/module/chat/model"
)

// ConversationStore keeps two-party conversations. Not-found lookups return an
// error carrying errs.NotFound; every other failure carries errs.StorageError.
type ConversationStore interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)

	// ResolvePair returns the conversation between a and b, creating it when
	// absent. Concurrent calls for the same pair return the same conversation.
	ResolvePair(ctx context.Context, a, b string) (conv *model.Conversation, created bool, err error)

	// UpdateSummary sets the last-message summary unless the stored one is
	// newer than last.At.
	UpdateSummary(ctx context.Context, conversationID string, last model.LastMessage) error

	// ListByParticipant returns userID's conversations, most recently active
	// first.
	ListByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error)
}

// MessageStore appends and lists messages.
type MessageStore interface {
	// Create assigns ID and CreatedAt when they are empty and stores m.
	Create(ctx context.Context, m *model.Message) error

	// ListByConversation returns messages in creation order.
	ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// UserDirectory resolves display profiles. Unknown ids are absent from the
// result rather than an error.
type UserDirectory interface {
	FindUsers(ctx context.Context, ids []string) (map[string]model.UserProfile, error)
}
