package model

import (
	"strconv"
	"time"
)

const ConversationTableName = "conversations"

// LastMessage is the summary shown in conversation lists.
type LastMessage struct {
	Text   string    `bson:"text" json:"text"`
	Sender string    `bson:"sender" json:"sender"`
	At     time.Time `bson:"at" json:"at"`
}

// Conversation is a two-party thread. PairKey is unique so that concurrent
// first messages between the same users land in one conversation.
type Conversation struct {
	ID           string       `bson:"_id" json:"id"`
	Participants []string     `bson:"participants" json:"participants"`
	PairKey      string       `bson:"pair_key" json:"-"`
	LastMessage  *LastMessage `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Others returns the participants other than userID.
func (c *Conversation) Others(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}

// PairKey is order independent: PairKey(a, b) == PairKey(b, a). The first
// id is length prefixed, so ids containing ':' cannot collide.
func PairKey(a, b string) string {
	p := SortedPair(a, b)
	return strconv.Itoa(len(p[0])) + ":" + p[0] + ":" + p[1]
}

// SortedPair returns the two ids in PairKey order.
func SortedPair(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}
