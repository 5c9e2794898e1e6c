package chat

import (
	"encoding/json"
	"time"
)

// Outbound event names. Conversation-channel events unless noted.
const (
	EventMessageNew      = "message.new"
	EventMessageUpdated  = "message.updated"
	EventMessageDeleted  = "message.deleted"
	EventMessageRead     = "message.read"
	EventTyping          = "message.typing"
	EventMemberAdded     = "member.added"
	EventMentionNotified = "mention.notified" // private channel
	EventPresenceChanged = "presence.changed" // private channel / all
	EventError           = "error"            // originating connection only
)

// Envelope wraps every outbound broadcast.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func encodeEvent(event string, data interface{}) []byte {
	b, _ := json.Marshal(&Envelope{Event: event, Data: data})
	return b
}

// Frame is the tagged inbound request union: one op field, one typed
// payload per op, validated before it reaches the core.
type Frame struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	OpSend   = "send"
	OpJoin   = "join"
	OpTyping = "typing"
	OpRead   = "read"
	OpEdit   = "edit"
	OpDelete = "delete"
)

type SendRequest struct {
	ConversationID  string     `json:"conversation_id"`
	Body            string     `json:"body"`
	MediaURL        string     `json:"media_url,omitempty"`
	ReplyToID       string     `json:"reply_to_id,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Silent          bool       `json:"silent,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	Destruct        *bool      `json:"destruct,omitempty"` // overrides the conversation default
	DestructSeconds int        `json:"destruct_seconds,omitempty"`
}

type JoinRequest struct {
	ConversationID string `json:"conversation_id"`
}

type TypingRequest struct {
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type ReadRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type EditRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
}

type DeleteRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// Outbound payloads.

type ReadEvent struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type PresenceEvent struct {
	UserID     string    `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type MemberAddedEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type MentionEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Excerpt        string `json:"excerpt"`
}

type DeletedEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type ErrorEvent struct {
	Op      string `json:"op,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
