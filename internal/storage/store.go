package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/emberchat/ember/internal/models"
)

// Store bundles the repositories behind the chat.Store and
// chat.Authenticator contracts.
type Store struct {
	Users         *UserRepository
	Conversations *ConversationRepository
	Messages      *MessageRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Users:         NewUserRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
	}
}

func (s *Store) UserByToken(ctx context.Context, token string) (*models.User, error) {
	return s.Users.GetByToken(ctx, token)
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.Users.GetByID(ctx, id)
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	return s.Users.GetByIDs(ctx, ids)
}

func (s *Store) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	return s.Users.SetPresence(ctx, userID, online, lastSeen)
}

func (s *Store) ConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return s.Conversations.GetByID(ctx, id)
}

func (s *Store) ConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.Conversations.IDsForUser(ctx, userID)
}

func (s *Store) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	return s.Conversations.SetLastMessage(ctx, conversationID, messageID, at)
}

func (s *Store) SetLastRead(ctx context.Context, conversationID, userID string, p models.ReadPointer) error {
	return s.Conversations.SetLastRead(ctx, conversationID, userID, p)
}

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.Messages.Create(ctx, msg)
}

func (s *Store) MessageByID(ctx context.Context, id string) (*models.Message, error) {
	return s.Messages.GetByID(ctx, id)
}

func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) error {
	return s.Messages.Save(ctx, msg)
}

func (s *Store) PendingDeletions(ctx context.Context) ([]models.Message, error) {
	return s.Messages.PendingDeletions(ctx)
}

// Authenticate resolves a bearer token to its user.
func (s *Store) Authenticate(ctx context.Context, token string) (*models.User, error) {
	return s.Users.GetByToken(ctx, token)
}
