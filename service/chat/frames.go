package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"PSocial/module/chat/model"
	"PSocial/tools/decode"
)

// Event names carried in Frame.Event.
const (
	EventSendMessage      = "sendMessage"
	EventNewMessage       = "newMessage"
	EventSendMessageError = "sendMessageError"
)

// Frame is the JSON envelope of every websocket message.
type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// ParseFrame decodes an inbound text frame.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return &f, nil
}

// EncodeFrame builds an outbound frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
}

// SendMessagePayload is the data of an inbound sendMessage frame.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	Text           string `json:"text"`
	ClientMsgID    string `json:"clientMsgId"`
}

// ExtractSendMessage decodes the data of a sendMessage frame. Ids sent as
// numbers are accepted and turned into strings.
func ExtractSendMessage(data map[string]any) (*SendMessagePayload, error) {
	if data == nil {
		return nil, fmt.Errorf("sendMessage has no data")
	}
	return decode.Map[SendMessagePayload](data)
}

// Person is a user reference as clients render it.
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func personOf(id string, profiles map[string]model.UserProfile) Person {
	p, ok := profiles[id]
	if !ok {
		p = model.BareProfile(id)
	}
	return Person{ID: id, Name: p.Name, Avatar: p.Avatar}
}

type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         Person    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

type LastMessageView struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

type ConversationView struct {
	ID           string           `json:"id"`
	Participants []Person         `json:"participants"`
	LastMessage  *LastMessageView `json:"lastMessage,omitempty"`
}

// NewMessagePayload is the data of an outbound newMessage frame.
type NewMessagePayload struct {
	Message      MessageView      `json:"message"`
	Conversation ConversationView `json:"conversation"`
	ClientMsgID  string           `json:"clientMsgId,omitempty"`
}

// SendMessageErrorPayload tells the sender its send failed.
type SendMessageErrorPayload struct {
	ClientMsgID string `json:"clientMsgId,omitempty"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
}

// BuildMessageView joins a stored message with the sender's profile.
func BuildMessageView(m *model.Message, profiles map[string]model.UserProfile) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         personOf(m.Sender, profiles),
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
	}
}

// BuildConversationView joins a conversation with its participants' profiles.
func BuildConversationView(c *model.Conversation, profiles map[string]model.UserProfile) ConversationView {
	v := ConversationView{
		ID:           c.ID,
		Participants: make([]Person, 0, len(c.Participants)),
	}
	for _, id := range c.Participants {
		v.Participants = append(v.Participants, personOf(id, profiles))
	}
	if c.LastMessage != nil {
		v.LastMessage = &LastMessageView{Text: c.LastMessage.Text, Sender: c.LastMessage.Sender}
	}
	return v
}
