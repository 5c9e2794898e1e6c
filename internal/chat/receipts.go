package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/emberchat/ember/internal/models"
)

// MarkRead records that a user has seen a message. Idempotent: a second read
// by the same user changes nothing and re-broadcasts nothing. The read-set
// mutation is a set-add, so concurrent reads by different users commute.
func (h *Hub) MarkRead(ctx context.Context, c *Client, req ReadRequest) error {
	if req.MessageID == "" || req.ConversationID == "" {
		return fmt.Errorf("message_id and conversation_id required: %w", ErrValidation)
	}

	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	msg, err := h.store.MessageByID(ctx, req.MessageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != req.ConversationID {
		return fmt.Errorf("message not in conversation: %w", ErrValidation)
	}
	conv, err := h.store.ConversationByID(ctx, req.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(c.UserID) {
		return ErrAuthorization
	}
	if msg.Deleted || msg.ReadByUser(c.UserID) {
		return nil
	}

	now := h.now()
	msg.ReadBy = append(msg.ReadBy, models.ReadReceipt{UserID: c.UserID, ReadAt: now})

	armed := h.acknowledge(conv, msg, c.UserID)

	if err := h.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist read receipt: %w", err)
	}

	// Last-read pointer moves only forward; out-of-order acknowledgements
	// for older messages leave it alone.
	if prev, ok := conv.LastRead[c.UserID]; !ok || msg.CreatedAt.After(prev.At) {
		p := models.ReadPointer{MessageID: msg.ID, At: msg.CreatedAt}
		if err := h.store.SetLastRead(ctx, conv.ID, c.UserID, p); err != nil {
			h.log.Error("last-read pointer update failed", "conversation", conv.ID, "user", c.UserID, "err", err)
		}
	}

	h.broadcastRoom(ctx, conv.ID, "", EventMessageRead, ReadEvent{
		MessageID: msg.ID,
		UserID:    c.UserID,
	})

	if armed {
		h.destruct.arm(msg.ID, *msg.ScheduledDeletionAt)
	}
	return nil
}

// acknowledge runs the armed→countdown transition for a self-destructing
// message. The full participant set is re-derived from the conversation's
// current membership at each acknowledgement, so a participant who left
// without reading never blocks the countdown. Returns true when the
// countdown started on this acknowledgement; it starts at most once.
func (h *Hub) acknowledge(conv *models.Conversation, msg *models.Message, userID string) bool {
	if !msg.DestructEnabled || msg.ScheduledDeletionAt != nil {
		return false
	}
	if !msg.AcknowledgedByUser(userID) {
		msg.AcknowledgedBy = append(msg.AcknowledgedBy, userID)
	}
	for _, p := range conv.Participants {
		if !msg.AcknowledgedByUser(p) {
			return false
		}
	}
	at := h.now().Add(time.Duration(msg.DestructDelaySeconds) * time.Second)
	msg.ScheduledDeletionAt = &at
	return true
}
