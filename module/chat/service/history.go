package service

import (
	"context"
	"time"

	"PSocial/logger"
	"PSocial/module/chat/model"
	"PSocial/module/chat/store"
	"PSocial/service/chat"
	"PSocial/tools/errs"

	"go.uber.org/zap"
)

// ConversationItem is one row of a user's conversation list.
type ConversationItem struct {
	chat.ConversationView
	UpdatedAt time.Time `json:"updatedAt"`
}

// History serves the read side of the chat: a user's conversations and a
// conversation's messages, both joined with display profiles.
type History struct {
	convs store.ConversationStore
	msgs  store.MessageStore
	users store.UserDirectory
}

func NewHistory(convs store.ConversationStore, msgs store.MessageStore, users store.UserDirectory) *History {
	return &History{convs: convs, msgs: msgs, users: users}
}

// Conversations lists userID's conversations, newest activity first.
func (h *History) Conversations(ctx context.Context, userID string) ([]ConversationItem, error) {
	if userID == "" {
		return nil, errs.ErrValidation.WrapMsg("user id is required")
	}
	list, err := h.convs.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range list {
		ids = append(ids, c.Participants...)
	}
	profiles := h.profiles(ctx, ids)

	out := make([]ConversationItem, 0, len(list))
	for _, c := range list {
		out = append(out, ConversationItem{
			ConversationView: chat.BuildConversationView(c, profiles),
			UpdatedAt:        c.UpdatedAt,
		})
	}
	return out, nil
}

// Messages returns the history of conversationID in creation order. Callers
// who are not participants get NotFound.
func (h *History) Messages(ctx context.Context, userID, conversationID string) ([]chat.MessageView, error) {
	if userID == "" || conversationID == "" {
		return nil, errs.ErrValidation.WrapMsg("user id and conversation id are required")
	}
	conv, err := h.convs.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errs.ErrNotFound.WrapMsg("conversation not found", "id", conversationID)
	}
	msgs, err := h.msgs.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	profiles := h.profiles(ctx, conv.Participants)

	out := make([]chat.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chat.BuildMessageView(m, profiles))
	}
	return out, nil
}

// profiles degrades to bare ids when the directory is unavailable.
func (h *History) profiles(ctx context.Context, ids []string) map[string]model.UserProfile {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	uniq := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	profiles, err := h.users.FindUsers(ctx, uniq)
	if err != nil {
		logger.Warn("history: profile lookup failed", zap.Error(err), zap.Int("ids", len(uniq)))
		return nil
	}
	return profiles
}
