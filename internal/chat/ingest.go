package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/emberchat/ember/internal/models"
)

// Send validates, persists and fans out one message. All-or-nothing from the
// caller's perspective: persistence failure means no broadcast and an error
// back on the originating connection.
func (h *Hub) Send(ctx context.Context, c *Client, req SendRequest) (*models.Message, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id required: %w", ErrValidation)
	}
	if req.Body == "" && req.MediaURL == "" {
		return nil, fmt.Errorf("body or media required: %w", ErrValidation)
	}
	if len(req.Body) > h.opts.MaxMessageBytes {
		return nil, fmt.Errorf("body exceeds %d bytes: %w", h.opts.MaxMessageBytes, ErrValidation)
	}

	conv, err := h.store.ConversationByID(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(c.UserID) {
		return nil, ErrAuthorization
	}

	// Mentions are resolved before persistence so the ids land on the
	// stored record.
	mentions, mentionAll, err := h.resolveMentions(ctx, conv, req.Body)
	if err != nil {
		return nil, err
	}

	now := h.now()
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       c.UserID,
		Body:           req.Body,
		MediaURL:       req.MediaURL,
		ReplyToID:      req.ReplyToID,
		Tags:           req.Tags,
		Silent:         req.Silent,
		CreatedAt:      now,
		Mentions:       mentions,
		MentionAll:     mentionAll,
	}
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		t := *req.ScheduledAt
		msg.ScheduledAt = &t
	}

	h.applyDestruct(conv, &req, msg)

	if err := h.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	if err := h.store.SetLastMessage(ctx, conv.ID, msg.ID, now); err != nil {
		// Pointer is derivable from the message table; do not fail the send.
		h.log.Error("last-message pointer update failed", "conversation", conv.ID, "err", err)
	}

	// Future-scheduled sends are persisted but not broadcast; the send
	// scheduler fires them when the time elapses.
	if msg.ScheduledAt != nil {
		h.log.Info("message scheduled", "message", msg.ID, "at", msg.ScheduledAt)
		return msg, nil
	}

	h.broadcastRoom(ctx, conv.ID, "", EventMessageNew, msg)

	if len(msg.Mentions) > 0 || msg.MentionAll {
		h.notifyMentions(ctx, conv, msg)
	}
	return msg, nil
}

// applyDestruct attaches an empty self-destruct descriptor when the
// conversation default or the explicit request enables it. The sender is
// auto-acknowledged at send time; the countdown therefore waits on every
// other participant.
func (h *Hub) applyDestruct(conv *models.Conversation, req *SendRequest, msg *models.Message) {
	enabled := conv.Destruct
	delay := conv.DestructSeconds
	if req.Destruct != nil {
		enabled = *req.Destruct
	}
	if req.DestructSeconds > 0 {
		delay = req.DestructSeconds
	}
	if !enabled {
		return
	}
	if delay <= 0 {
		delay = h.opts.DefaultDestructSeconds
	}
	msg.DestructEnabled = true
	msg.DestructDelaySeconds = delay
	msg.AcknowledgedBy = []string{msg.SenderID}
}

// Edit replaces a message body. Sender-only; mentions are re-resolved so the
// stored ids track the new text.
func (h *Hub) Edit(ctx context.Context, c *Client, req EditRequest) error {
	if req.MessageID == "" || req.Body == "" {
		return fmt.Errorf("message_id and body required: %w", ErrValidation)
	}
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	msg, err := h.store.MessageByID(ctx, req.MessageID)
	if err != nil {
		return err
	}
	if msg.SenderID != c.UserID {
		return ErrAuthorization
	}
	if msg.Deleted {
		return fmt.Errorf("message deleted: %w", ErrNotFound)
	}
	conv, err := h.store.ConversationByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	mentions, mentionAll, err := h.resolveMentions(ctx, conv, req.Body)
	if err != nil {
		return err
	}
	msg.Body = req.Body
	msg.Edited = true
	msg.Mentions = mentions
	msg.MentionAll = mentionAll
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist edit: %w", err)
	}
	h.broadcastRoom(ctx, conv.ID, "", EventMessageUpdated, msg)
	return nil
}

// Delete soft-deletes a message on the sender's request. Shares the
// idempotent deletion path with the self-destruct scheduler, so racing a
// pending countdown is harmless.
func (h *Hub) Delete(ctx context.Context, c *Client, req DeleteRequest) error {
	if req.MessageID == "" {
		return fmt.Errorf("message_id required: %w", ErrValidation)
	}
	msg, err := h.store.MessageByID(ctx, req.MessageID)
	if err != nil {
		return err
	}
	if msg.SenderID != c.UserID {
		return ErrAuthorization
	}
	return h.deleteMessage(ctx, req.MessageID)
}
