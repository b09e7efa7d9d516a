package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"PSocial/module/chat/model"
	"PSocial/tools/errs"
	"PSocial/tools/ids"
)

// Memory holds conversations and messages in process. It backs the
// "memory" storage driver and the gateway tests.
type Memory struct {
	mu     sync.RWMutex
	convs  map[string]*model.Conversation // id -> conversation
	byPair map[string]string              // pair key -> id
	msgs   map[string][]*model.Message    // conversation id -> messages

	now   func() time.Time
	newID func() string
}

func NewMemory() *Memory {
	return &Memory{
		convs:  make(map[string]*model.Conversation),
		byPair: make(map[string]string),
		msgs:   make(map[string][]*model.Message),
		now:    time.Now,
		newID:  ids.GenerateString,
	}
}

func cloneConv(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

func cloneMsg(m *model.Message) *model.Message {
	cp := *m
	if m.ReadBy != nil {
		cp.ReadBy = make([]string, len(m.ReadBy))
		copy(cp.ReadBy, m.ReadBy)
	}
	return &cp
}

func (s *Memory) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.ErrStorage.Cause(err, "find conversation", "id", id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("conversation not found", "id", id)
	}
	return cloneConv(c), nil
}

func (s *Memory) ResolvePair(ctx context.Context, a, b string) (*model.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errs.ErrStorage.Cause(err, "resolve conversation", "a", a, "b", b)
	}
	key := model.PairKey(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[key]; ok {
		return cloneConv(s.convs[id]), false, nil
	}
	now := s.now()
	c := &model.Conversation{
		ID:           s.newID(),
		Participants: model.SortedPair(a, b),
		PairKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.convs[c.ID] = c
	s.byPair[key] = c.ID
	return cloneConv(c), true, nil
}

func (s *Memory) UpdateSummary(ctx context.Context, conversationID string, last model.LastMessage) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrStorage.Cause(err, "update summary", "id", conversationID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return errs.ErrNotFound.WrapMsg("conversation not found", "id", conversationID)
	}
	if c.LastMessage != nil && c.LastMessage.At.After(last.At) {
		return nil
	}
	lm := last
	c.LastMessage = &lm
	if last.At.After(c.UpdatedAt) {
		c.UpdatedAt = last.At
	}
	return nil
}

func (s *Memory) ListByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.ErrStorage.Cause(err, "list conversations", "user", userID)
	}
	s.mu.RLock()
	out := make([]*model.Conversation, 0)
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, cloneConv(c))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Memory) Create(ctx context.Context, m *model.Message) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrStorage.Cause(err, "create message", "conversation", m.ConversationID)
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[m.ConversationID]; !ok {
		return errs.ErrNotFound.WrapMsg("conversation not found", "id", m.ConversationID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	// creation order is the slice order; keep timestamps non-decreasing with it
	if list := s.msgs[m.ConversationID]; len(list) > 0 {
		if prev := list[len(list)-1].CreatedAt; m.CreatedAt.Before(prev) {
			m.CreatedAt = prev
		}
	}
	s.msgs[m.ConversationID] = append(s.msgs[m.ConversationID], cloneMsg(m))
	return nil
}

func (s *Memory) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.ErrStorage.Cause(err, "list messages", "conversation", conversationID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.msgs[conversationID]
	out := make([]*model.Message, 0, len(list))
	for _, m := range list {
		out = append(out, cloneMsg(m))
	}
	return out, nil
}

// MemoryUsers is a fixed profile table.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]model.UserProfile
}

func NewMemoryUsers(profiles ...model.UserProfile) *MemoryUsers {
	u := &MemoryUsers{users: make(map[string]model.UserProfile, len(profiles))}
	for _, p := range profiles {
		u.users[p.ID] = p
	}
	return u
}

// Put adds or replaces a profile.
func (u *MemoryUsers) Put(p model.UserProfile) {
	u.mu.Lock()
	u.users[p.ID] = p
	u.mu.Unlock()
}

func (u *MemoryUsers) FindUsers(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.ErrEnrichment.Cause(err, "find users")
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[string]model.UserProfile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := u.users[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
