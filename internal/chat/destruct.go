package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// destructScheduler owns the one-shot deletion timers. A timer is never
// explicitly canceled; firing against an already-deleted message is a no-op,
// which also covers races with user-initiated deletes.
type destructScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	hub    *Hub
}

func newDestructScheduler(h *Hub) *destructScheduler {
	return &destructScheduler{
		timers: map[string]*time.Timer{},
		hub:    h,
	}
}

// arm schedules the deletion of one message. Arming an already-armed
// message is a no-op; a fire time in the past fires immediately.
func (s *destructScheduler) arm(messageID string, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[messageID]; ok {
		return
	}
	d := time.Until(fireAt)
	if d < 0 {
		d = 0
	}
	s.timers[messageID] = time.AfterFunc(d, func() { s.fire(messageID) })
}

func (s *destructScheduler) fire(messageID string) {
	s.mu.Lock()
	delete(s.timers, messageID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.hub.deleteMessage(ctx, messageID); err != nil {
		s.hub.log.Error("scheduled deletion failed", "message", messageID, "err", err)
	}
}

func (s *destructScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// deleteMessage is the single soft-deletion path, shared by the scheduler
// and the explicit delete op. Idempotent: state is checked immediately
// before mutating, not when the timer was scheduled.
func (h *Hub) deleteMessage(ctx context.Context, messageID string) error {
	h.stateMu.Lock()
	msg, err := h.store.MessageByID(ctx, messageID)
	if err != nil {
		h.stateMu.Unlock()
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if msg.Deleted {
		h.stateMu.Unlock()
		return nil
	}
	msg.Deleted = true
	msg.Body = ""
	msg.MediaURL = ""
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		h.stateMu.Unlock()
		return fmt.Errorf("persist deletion: %w", err)
	}
	h.stateMu.Unlock()

	h.broadcastRoom(ctx, msg.ConversationID, "", EventMessageDeleted, DeletedEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
	return nil
}

// Resume re-arms deletion timers for every persisted countdown, so a process
// restart does not lose pending self-destruct deletions. Past-due countdowns
// fire right away.
func (h *Hub) Resume(ctx context.Context) error {
	msgs, err := h.store.PendingDeletions(ctx)
	if err != nil {
		return fmt.Errorf("load pending deletions: %w", err)
	}
	for _, m := range msgs {
		if m.ScheduledDeletionAt == nil {
			continue
		}
		h.destruct.arm(m.ID, *m.ScheduledDeletionAt)
	}
	if len(msgs) > 0 {
		h.log.Info("re-armed pending deletions", "count", len(msgs))
	}
	return nil
}
