package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emberchat/ember/internal/chat"
	"github.com/emberchat/ember/internal/models"
)

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", id, chat.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// IDsForUser returns the ids of every conversation listing the user as a
// participant. Participants is a JSON column, hence the JSON_CONTAINS match.
func (r *ConversationRepository) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("JSON_CONTAINS(participants, JSON_QUOTE(?))", userID).
		Pluck("id", &ids).Error
	return ids, err
}

// ListForUser returns full conversation records for the user, most recent
// activity first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var out []models.Conversation
	err := r.db.WithContext(ctx).
		Where("JSON_CONTAINS(participants, JSON_QUOTE(?))", userID).
		Order("last_message_at DESC").
		Find(&out).Error
	return out, err
}

func (r *ConversationRepository) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"last_message_id": messageID, "last_message_at": at}).Error
}

// SetLastRead updates the per-user read pointer inside a transaction so a
// concurrent update for another user is not lost.
func (r *ConversationRepository) SetLastRead(ctx context.Context, conversationID, userID string, p models.ReadPointer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("conversation %s: %w", conversationID, chat.ErrNotFound)
			}
			return err
		}
		if c.LastRead == nil {
			c.LastRead = map[string]models.ReadPointer{}
		}
		c.LastRead[userID] = p
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("last_read", c.LastRead).Error
	})
}
