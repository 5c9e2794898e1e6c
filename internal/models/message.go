package models

import "time"

// ReadReceipt records one user having seen a message.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is the persisted record broadcast to a conversation channel.
// Soft-delete only: Deleted flips once and Body is redacted in place.
type Message struct {
	ID             string   `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string   `gorm:"index;size:36" json:"conversation_id"`
	SenderID       string   `gorm:"size:36" json:"sender_id"`
	Body           string   `json:"body"`
	MediaURL       string   `json:"media_url,omitempty"`
	ReplyToID      string   `gorm:"size:36" json:"reply_to_id,omitempty"`
	Tags           []string `gorm:"serializer:json" json:"tags,omitempty"`
	Silent         bool     `json:"silent,omitempty"`

	// Non-nil and in the future means: persisted but not yet broadcast.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	Edited    bool      `json:"edited"`
	Deleted   bool      `json:"deleted"`

	ReadBy []ReadReceipt `gorm:"serializer:json" json:"read_by"`

	// Self-destruct descriptor. ScheduledDeletionAt is set at most once,
	// when AcknowledgedBy covers the conversation's current participants.
	DestructEnabled      bool       `json:"destruct_enabled"`
	DestructDelaySeconds int        `json:"destruct_delay_seconds,omitempty"`
	ScheduledDeletionAt  *time.Time `gorm:"index" json:"scheduled_deletion_at,omitempty"`
	AcknowledgedBy       []string   `gorm:"serializer:json" json:"acknowledged_by,omitempty"`

	Mentions   []string `gorm:"serializer:json" json:"mentions,omitempty"`
	MentionAll bool     `json:"mention_all,omitempty"`
}

func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func (m *Message) AcknowledgedByUser(userID string) bool {
	for _, id := range m.AcknowledgedBy {
		if id == userID {
			return true
		}
	}
	return false
}
