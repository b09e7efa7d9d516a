package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"PSocial/logger"
	"PSocial/module/chat/model"
	"PSocial/module/chat/store"
	"PSocial/tools/errs"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// anonymousUser is what some clients send when they have no identity yet.
const anonymousUser = "undefined"

// Pusher delivers an encoded frame to one connection.
type Pusher interface {
	Push(connID string, frame []byte) error
}

type GatewayConf struct {
	SendTimeout time.Duration // budget for one send, store calls included
	Workers     int           // concurrent sends
}

func (c *GatewayConf) norm() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 256
	}
}

// Deps are the collaborators of a Gateway. Users and Publisher are optional.
type Deps struct {
	Directory     *Directory
	Conversations store.ConversationStore
	Messages      store.MessageStore
	Users         store.UserDirectory
	Pusher        Pusher
	Publisher     Publisher
}

// SendRequest is one sendMessage from a connection.
type SendRequest struct {
	ConnID     string // originating connection
	ConnUserID string // handshake identity of that connection, may be empty

	ConversationID string
	Sender         string
	Recipient      string
	Text           string
	ClientMsgID    string
}

// Gateway turns send requests into stored messages and newMessage frames.
type Gateway struct {
	dir    *Directory
	convs  store.ConversationStore
	msgs   store.MessageStore
	users  store.UserDirectory
	pusher Pusher
	pub    Publisher

	pool *ants.Pool
	conf GatewayConf
}

func NewGateway(conf GatewayConf, deps Deps) (*Gateway, error) {
	conf.norm()
	if deps.Directory == nil || deps.Conversations == nil || deps.Messages == nil || deps.Pusher == nil {
		return nil, errors.New("gateway: directory, stores and pusher are required")
	}
	pool, err := ants.NewPool(conf.Workers,
		ants.WithPanicHandler(func(p any) {
			logger.Error("[gateway] send panicked", zap.Error(errs.ErrPanic(p)), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		dir:    deps.Directory,
		convs:  deps.Conversations,
		msgs:   deps.Messages,
		users:  deps.Users,
		pusher: deps.Pusher,
		pub:    deps.Publisher,
		pool:   pool,
		conf:   conf,
	}, nil
}

func isAnonymous(userID string) bool {
	return userID == "" || userID == anonymousUser
}

// HandleConnect registers userID on connID unless the user is anonymous.
func (g *Gateway) HandleConnect(userID, connID string) {
	if isAnonymous(userID) {
		return
	}
	g.dir.Register(userID, connID)
	logger.Debug("[gateway] connect", zap.String("user", userID), zap.String("conn", connID))
}

// HandleDisconnect is safe to call any number of times.
func (g *Gateway) HandleDisconnect(connID string) {
	g.dir.Unregister(connID)
}

// Submit runs the send on the worker pool under the send timeout. It blocks
// while every worker is busy.
func (g *Gateway) Submit(req SendRequest) error {
	return g.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.conf.SendTimeout)
		defer cancel()
		_, _ = g.SendMessage(ctx, req)
	})
}

// Close waits up to timeout for in-flight sends.
func (g *Gateway) Close(timeout time.Duration) error {
	return g.pool.ReleaseTimeout(timeout)
}

// SendMessage stores the message and delivers newMessage to the live
// participants. On failure the originating connection gets sendMessageError
// and the error is returned.
func (g *Gateway) SendMessage(ctx context.Context, req SendRequest) (*NewMessagePayload, error) {
	if err := validate(&req); err != nil {
		g.fail(req, err)
		return nil, err
	}

	conv, err := g.resolve(ctx, &req)
	if err != nil {
		g.fail(req, err)
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		Sender:         req.Sender,
		Text:           req.Text,
	}
	if err := g.msgs.Create(ctx, msg); err != nil {
		g.fail(req, err)
		return nil, err
	}

	last := model.LastMessage{Text: msg.Text, Sender: msg.Sender, At: msg.CreatedAt}
	if err := g.convs.UpdateSummary(ctx, conv.ID, last); err != nil {
		// the message is stored; the summary catches up on the next send
		logger.Warn("[gateway] update summary failed",
			zap.String("conversation", conv.ID), zap.String("message", msg.ID), zap.Error(err))
	}
	conv.LastMessage = &last

	profiles := g.enrich(ctx, conv, msg)
	payload := &NewMessagePayload{
		Message:      BuildMessageView(msg, profiles),
		Conversation: BuildConversationView(conv, profiles),
		ClientMsgID:  req.ClientMsgID,
	}
	frame, err := EncodeFrame(EventNewMessage, payload)
	if err != nil {
		err = errs.ErrInternal.Cause(err, "encode newMessage")
		g.fail(req, err)
		return nil, err
	}

	delivered := g.deliver(conv, &req, frame)
	g.publish(ctx, conv, msg, delivered)
	return payload, nil
}

func validate(req *SendRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return errs.ErrValidation.WrapMsg("text is empty")
	}
	if req.Sender == "" {
		return errs.ErrValidation.WrapMsg("sender is required")
	}
	if !isAnonymous(req.ConnUserID) && req.Sender != req.ConnUserID {
		return errs.ErrValidation.WrapMsg("sender does not match connection", "sender", req.Sender)
	}
	if req.ConversationID == "" {
		if req.Recipient == "" {
			return errs.ErrValidation.WrapMsg("recipient is required")
		}
		if req.Recipient == req.Sender {
			return errs.ErrValidation.WrapMsg("recipient equals sender")
		}
	}
	return nil
}

func (g *Gateway) resolve(ctx context.Context, req *SendRequest) (*model.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := g.convs.FindByID(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		// outsiders get the same answer as for a missing conversation
		if !conv.HasParticipant(req.Sender) {
			return nil, errs.ErrNotFound.WrapMsg("conversation not found", "id", req.ConversationID)
		}
		return conv, nil
	}

	conv, created, err := g.convs.ResolvePair(ctx, req.Sender, req.Recipient)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(req.Sender) || !conv.HasParticipant(req.Recipient) {
		return nil, errs.ErrStorage.WrapMsg("resolved conversation does not match pair",
			"id", conv.ID, "sender", req.Sender, "recipient", req.Recipient)
	}
	if created {
		logger.Info("[gateway] conversation created",
			zap.String("conversation", conv.ID), zap.Strings("participants", conv.Participants))
	}
	return conv, nil
}

// enrich never fails the send; without profiles the views carry bare ids.
func (g *Gateway) enrich(ctx context.Context, conv *model.Conversation, msg *model.Message) map[string]model.UserProfile {
	if g.users == nil {
		return nil
	}
	ids := make([]string, 0, len(conv.Participants)+1)
	seen := make(map[string]struct{}, len(conv.Participants)+1)
	for _, id := range append([]string{msg.Sender}, conv.Participants...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	profiles, err := g.users.FindUsers(ctx, ids)
	if err != nil {
		logger.Warn("[gateway] enrichment failed, delivering bare ids",
			zap.String("conversation", conv.ID), zap.Error(errs.ErrEnrichment.Cause(err, "find users")))
		return nil
	}
	return profiles
}

// deliver pushes frame to the other participants that are online, then to
// the sender's connections. Each connection gets the frame at most once. It
// returns the recipients that were online.
func (g *Gateway) deliver(conv *model.Conversation, req *SendRequest, frame []byte) []string {
	seen := make(map[string]struct{}, 3)
	push := func(connID string) {
		if connID == "" {
			return
		}
		if _, ok := seen[connID]; ok {
			return
		}
		seen[connID] = struct{}{}
		if err := g.pusher.Push(connID, frame); err != nil {
			logger.Warn("[gateway] push failed", zap.String("conn", connID), zap.Error(err))
		}
	}

	var delivered []string
	for _, user := range conv.Others(req.Sender) {
		connID, ok := g.dir.Lookup(user)
		if !ok {
			continue
		}
		push(connID)
		delivered = append(delivered, user)
	}
	push(req.ConnID)
	if connID, ok := g.dir.Lookup(req.Sender); ok {
		push(connID)
	}
	return delivered
}

func (g *Gateway) publish(ctx context.Context, conv *model.Conversation, msg *model.Message, delivered []string) {
	if g.pub == nil {
		return
	}
	ev := MessageCreatedEvent{
		Type:           EventTypeMessageCreated,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		Sender:         msg.Sender,
		Recipients:     conv.Others(msg.Sender),
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
		Delivered:      delivered,
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("[gateway] marshal event failed", zap.Error(err))
		return
	}
	if err := g.pub.Publish(ctx, conv.ID, raw); err != nil {
		logger.Warn("[gateway] publish event failed",
			zap.String("message", msg.ID), zap.Error(err))
	}
}

// fail reports err to the originating connection only.
func (g *Gateway) fail(req SendRequest, err error) {
	code := errs.CodeOf(err)
	logger.Warn("[gateway] send failed",
		zap.String("conn", req.ConnID), zap.String("sender", req.Sender),
		zap.Int("code", code), zap.Error(err))

	if req.ConnID == "" {
		return
	}
	frame, mErr := EncodeFrame(EventSendMessageError, SendMessageErrorPayload{
		ClientMsgID: req.ClientMsgID,
		Code:        code,
		Message:     clientMessage(err),
	})
	if mErr != nil {
		return
	}
	if pErr := g.pusher.Push(req.ConnID, frame); pErr != nil {
		logger.Warn("[gateway] push error frame failed", zap.String("conn", req.ConnID), zap.Error(pErr))
	}
}

// clientMessage keeps storage details out of what clients see.
func clientMessage(err error) string {
	var ce errs.CodeError
	if !errors.As(err, &ce) {
		return "internal error"
	}
	switch ce.Code {
	case errs.ValidationError, errs.NotFound:
		if ce.Detail != "" {
			return ce.Detail
		}
	}
	return ce.Msg
}
