package models

import "time"

type ConversationType string

const (
	ConversationDirect  ConversationType = "direct"
	ConversationGroup   ConversationType = "group"
	ConversationChannel ConversationType = "channel" // broadcast channel
)

// ReadPointer is a per-user cursor into a conversation.
// last_read is monotonic: it only ever moves to a newer message.
type ReadPointer struct {
	MessageID string    `json:"message_id"`
	At        time.Time `json:"at"`
}

// Conversation membership and last-message/last-read bookkeeping.
// Conversations are created by the room service; the core reads Participants
// and mutates LastMessage* and LastRead.
type Conversation struct {
	ID            string                 `gorm:"primaryKey;size:36" json:"id"`
	Type          ConversationType       `gorm:"size:16" json:"type"`
	Participants  []string               `gorm:"serializer:json" json:"participants"`
	LastMessageID string                 `gorm:"size:36" json:"last_message_id"`
	LastMessageAt time.Time              `json:"last_message_at"`
	LastRead      map[string]ReadPointer `gorm:"serializer:json" json:"last_read"`

	// Conversation-level self-destruct default, applied to every message
	// sent into it unless the send request overrides.
	Destruct        bool `json:"destruct"`
	DestructSeconds int  `json:"destruct_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}
