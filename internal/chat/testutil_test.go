package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/emberchat/ember/internal/models"
)

// memStore is an in-memory Store for core tests. Reads return copies so the
// core's load-mutate-save cycle works the same as against the database.
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	convs map[string]*models.Conversation
	msgs  map[string]*models.Message

	failCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*models.User{},
		convs: map[string]*models.Conversation{},
		msgs:  map[string]*models.Message{},
	}
}

func (s *memStore) addUser(id, handle string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Handle: handle, Token: "tok-" + id}
	s.users[id] = u
	return u
}

func (s *memStore) addConversation(id string, typ models.ConversationType, participants ...string) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Conversation{ID: id, Type: typ, Participants: participants, LastRead: map[string]models.ReadPointer{}}
	s.convs[id] = c
	return c
}

func copyMessage(m *models.Message) *models.Message {
	cp := *m
	cp.ReadBy = append([]models.ReadReceipt(nil), m.ReadBy...)
	cp.AcknowledgedBy = append([]string(nil), m.AcknowledgedBy...)
	cp.Mentions = append([]string(nil), m.Mentions...)
	if m.ScheduledDeletionAt != nil {
		t := *m.ScheduledDeletionAt
		cp.ScheduledDeletionAt = &t
	}
	return &cp
}

func copyConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.LastRead = map[string]models.ReadPointer{}
	for k, v := range c.LastRead {
		cp.LastRead[k] = v
	}
	return &cp
}

func (s *memStore) UserByToken(_ context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Token == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrAuthentication
}

func (s *memStore) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) UsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *memStore) SetPresence(_ context.Context, userID string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	u.Online = online
	u.LastSeenAt = lastSeen
	return nil
}

func (s *memStore) ConversationByID(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return copyConversation(c), nil
}

func (s *memStore) ConversationIDsForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, c := range s.convs {
		for _, p := range c.Participants {
			if p == userID {
				ids = append(ids, c.ID)
				break
			}
		}
	}
	return ids, nil
}

func (s *memStore) SetLastMessage(_ context.Context, conversationID, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	c.LastMessageID = messageID
	c.LastMessageAt = at
	return nil
}

func (s *memStore) SetLastRead(_ context.Context, conversationID, userID string, p models.ReadPointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if c.LastRead == nil {
		c.LastRead = map[string]models.ReadPointer{}
	}
	c.LastRead[userID] = p
	return nil
}

func (s *memStore) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("store unavailable")
	}
	s.msgs[msg.ID] = copyMessage(msg)
	return nil
}

func (s *memStore) MessageByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return copyMessage(m), nil
}

func (s *memStore) SaveMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.ID] = copyMessage(msg)
	return nil
}

func (s *memStore) PendingDeletions(_ context.Context) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.DestructEnabled && !m.Deleted && m.ScheduledDeletionAt != nil {
			out = append(out, *copyMessage(m))
		}
	}
	return out, nil
}

func (s *memStore) message(t *testing.T, id string) *models.Message {
	t.Helper()
	m, err := s.MessageByID(context.Background(), id)
	if err != nil {
		t.Fatalf("message %s not in store: %v", id, err)
	}
	return m
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// fakeConn satisfies ConnLike; tests drive the hub directly, so reads
// immediately report closure.
type fakeConn struct{}

func (fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (fakeConn) WriteMessage(int, []byte) error    { return nil }
func (fakeConn) Close() error                      { return nil }

func newTestHub(store Store) *Hub {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(store, log, Options{SendQueueSize: 32})
}

// connect binds a new device connection for the user.
func connect(t *testing.T, h *Hub, u *models.User) *Client {
	t.Helper()
	c := NewClient("conn-"+u.ID+"-"+fmt.Sprint(time.Now().UnixNano()), u, fakeConn{}, h)
	h.bindConn(c)
	return c
}

type recvEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// expectEvent waits for the next frame on the client's send queue and
// requires it to carry the named event. The decoded payload lands in into.
func expectEvent(t *testing.T, c *Client, event string, into interface{}) {
	t.Helper()
	select {
	case data := <-c.Send:
		var env recvEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("malformed frame %q: %v", data, err)
		}
		if env.Event != event {
			t.Fatalf("expected event %q, got %q", event, env.Event)
		}
		if into != nil {
			if err := json.Unmarshal(env.Data, into); err != nil {
				t.Fatalf("malformed %s payload: %v", event, err)
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("no %s event delivered", event)
	}
}

// expectNoEvent requires the client's send queue to stay empty.
func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame delivered: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// drain discards everything currently queued on the client.
func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}
