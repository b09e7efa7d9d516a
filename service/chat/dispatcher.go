package chat

import (
	"fmt"

	"PSocial/tools/errs"
)

// Handler processes one inbound event type.
type Handler interface {
	Event() string
	Handle(c *Client, data map[string]any) error
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) Dispatch(c *Client, f *Frame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return fmt.Errorf("no handler for event=%q", f.Event)
	}
	return h.Handle(c, f.Data)
}

// SendMessageHandler hands sendMessage frames to the gateway pool.
type SendMessageHandler struct {
	gw *Gateway
}

func NewSendMessageHandler(gw *Gateway) *SendMessageHandler {
	return &SendMessageHandler{gw: gw}
}

func (h *SendMessageHandler) Event() string { return EventSendMessage }

func (h *SendMessageHandler) Handle(c *Client, data map[string]any) error {
	p, err := ExtractSendMessage(data)
	if err != nil {
		// undecodable payloads still get an answer
		h.gw.fail(SendRequest{ConnID: c.ConnID, ConnUserID: c.UserID}, errs.ErrValidation.Cause(err, "bad sendMessage payload"))
		return err
	}
	req := SendRequest{
		ConnID:         c.ConnID,
		ConnUserID:     c.UserID,
		ConversationID: p.ConversationID,
		Sender:         p.Sender,
		Recipient:      p.Recipient,
		Text:           p.Text,
		ClientMsgID:    p.ClientMsgID,
	}
	if err := h.gw.Submit(req); err != nil {
		// pool closed or saturated; the sender still hears back
		h.gw.fail(req, errs.ErrInternal.Cause(err, "submit send"))
		return err
	}
	return nil
}
