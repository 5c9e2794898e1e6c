package chat

import (
	"context"
	"strings"
	"unicode"

	"github.com/emberchat/ember/internal/models"
)

// mentionAllToken addresses every participant of the conversation.
const mentionAllToken = "all"

// ParseMentions scans message text for @handle tokens. A token starts at an
// '@' preceded by start-of-text or a non-word rune and runs over word runes.
func ParseMentions(body string) (handles []string, all bool) {
	runes := []rune(body)
	seen := map[string]bool{}
	for i := 0; i < len(runes); i++ {
		if runes[i] != '@' {
			continue
		}
		if i > 0 && isWordRune(runes[i-1]) {
			continue // e-mail-like, not a mention
		}
		j := i + 1
		for j < len(runes) && isWordRune(runes[j]) {
			j++
		}
		if j == i+1 {
			continue // bare '@'
		}
		token := string(runes[i+1 : j])
		i = j - 1
		if strings.EqualFold(token, mentionAllToken) {
			all = true
			continue
		}
		if !seen[token] {
			seen[token] = true
			handles = append(handles, token)
		}
	}
	return handles, all
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// resolveMentions intersects parsed handles with the conversation's current
// participants. Handles outside the conversation are silently dropped.
func (h *Hub) resolveMentions(ctx context.Context, conv *models.Conversation, body string) ([]string, bool, error) {
	handles, all := ParseMentions(body)
	if len(handles) == 0 {
		return nil, all, nil
	}
	users, err := h.store.UsersByIDs(ctx, conv.Participants)
	if err != nil {
		return nil, false, err
	}
	byHandle := make(map[string]string, len(users))
	for _, u := range users {
		byHandle[strings.ToLower(u.Handle)] = u.ID
	}
	var ids []string
	for _, handle := range handles {
		if id, ok := byHandle[strings.ToLower(handle)]; ok {
			ids = append(ids, id)
		}
	}
	return ids, all, nil
}

// notifyMentions sends a mention-notification event to each target's private
// channel, sender excluded. Best-effort: failures are logged, never retried.
func (h *Hub) notifyMentions(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	targets := msg.Mentions
	if msg.MentionAll {
		targets = conv.Participants
	}
	ev := MentionEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		SenderID:       msg.SenderID,
		Excerpt:        excerpt(msg.Body, 80),
	}
	for _, userID := range targets {
		if userID == msg.SenderID {
			continue
		}
		h.broadcastUser(ctx, userID, EventMentionNotified, ev)
	}
}

func excerpt(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max])
}
