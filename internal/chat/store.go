package chat

import (
	"context"
	"time"

	"github.com/emberchat/ember/internal/models"
)

// Store is the persistence surface the core consumes. The gorm-backed
// implementation lives in internal/storage; tests swap in an in-memory one.
// Implementations return ErrNotFound (wrapped) for missing records.
type Store interface {
	UserByToken(ctx context.Context, token string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error

	ConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	ConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
	SetLastRead(ctx context.Context, conversationID, userID string, p models.ReadPointer) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	MessageByID(ctx context.Context, id string) (*models.Message, error)
	SaveMessage(ctx context.Context, msg *models.Message) error

	// PendingDeletions returns undeleted messages with a scheduled
	// deletion time, for the startup recovery sweep.
	PendingDeletions(ctx context.Context) ([]models.Message, error)
}

// Authenticator resolves an opaque bearer credential to a user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}
