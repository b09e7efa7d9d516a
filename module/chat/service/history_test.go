package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"PSocial/module/chat/model"
	"PSocial/module/chat/store"
	"PSocial/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenUsers struct{}

func (brokenUsers) FindUsers(context.Context, []string) (map[string]model.UserProfile, error) {
	return nil, errs.ErrEnrichment.Cause(errors.New("down"), "find users")
}

func seed(t *testing.T, s *store.Memory) (*model.Conversation, *model.Conversation) {
	t.Helper()
	ctx := context.Background()
	ab, _, err := s.ResolvePair(ctx, "alice", "bob")
	require.NoError(t, err)
	ac, _, err := s.ResolvePair(ctx, "alice", "carol")
	require.NoError(t, err)

	for _, txt := range []string{"hi", "there"} {
		m := &model.Message{ConversationID: ab.ID, Sender: "alice", Text: txt}
		require.NoError(t, s.Create(ctx, m))
		require.NoError(t, s.UpdateSummary(ctx, ab.ID, model.LastMessage{Text: m.Text, Sender: m.Sender, At: m.CreatedAt}))
	}
	time.Sleep(2 * time.Millisecond)
	m := &model.Message{ConversationID: ac.ID, Sender: "carol", Text: "yo"}
	require.NoError(t, s.Create(ctx, m))
	require.NoError(t, s.UpdateSummary(ctx, ac.ID, model.LastMessage{Text: m.Text, Sender: m.Sender, At: m.CreatedAt}))
	return ab, ac
}

func TestConversationsNewestFirstAndEnriched(t *testing.T) {
	s := store.NewMemory()
	ab, ac := seed(t, s)
	users := store.NewMemoryUsers(
		model.UserProfile{ID: "alice", Name: "Alice", Avatar: "a.png"},
		model.UserProfile{ID: "carol", Name: "Carol"},
	)
	h := NewHistory(s, s, users)

	list, err := h.Conversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ac.ID, list[0].ID)
	assert.Equal(t, ab.ID, list[1].ID)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "yo", list[0].LastMessage.Text)
	assert.Equal(t, "there", list[1].LastMessage.Text)

	names := map[string]string{}
	for _, p := range list[0].Participants {
		names[p.ID] = p.Name
	}
	assert.Equal(t, "Carol", names["carol"])
	assert.Equal(t, "Alice", names["alice"])

	list, err = h.Conversations(context.Background(), "dave")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMessagesParticipantOnly(t *testing.T) {
	s := store.NewMemory()
	ab, _ := seed(t, s)
	h := NewHistory(s, s, store.NewMemoryUsers(model.UserProfile{ID: "alice", Name: "Alice"}))
	ctx := context.Background()

	list, err := h.Messages(ctx, "bob", ab.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "hi", list[0].Text)
	assert.Equal(t, "there", list[1].Text)
	assert.Equal(t, "Alice", list[0].Sender.Name)

	_, err = h.Messages(ctx, "carol", ab.ID)
	assert.True(t, errs.Is(err, errs.NotFound))

	_, err = h.Messages(ctx, "bob", "missing")
	assert.True(t, errs.Is(err, errs.NotFound))

	_, err = h.Messages(ctx, "", ab.ID)
	assert.True(t, errs.Is(err, errs.ValidationError))
}

func TestHistoryDegradesWithoutProfiles(t *testing.T) {
	s := store.NewMemory()
	ab, _ := seed(t, s)
	h := NewHistory(s, s, brokenUsers{})

	list, err := h.Messages(context.Background(), "alice", ab.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Sender.ID)
	assert.Equal(t, model.BareProfile("alice").Name, list[0].Sender.Name)
}
