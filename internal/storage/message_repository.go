package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emberchat/ember/internal/chat"
	"github.com/emberchat/ember/internal/models"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, chat.ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

// Save writes the full record back, including the JSON-serialized sets.
func (r *MessageRepository) Save(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Save(msg).Error
}

// PendingDeletions returns undeleted messages that already have a scheduled
// deletion time, so the deletion timers can be re-armed after a restart.
func (r *MessageRepository) PendingDeletions(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("destruct_enabled = ? AND deleted = ? AND scheduled_deletion_at IS NOT NULL", true, false).
		Find(&out).Error
	return out, err
}

// History returns up to limit messages of a conversation, newest first.
func (r *MessageRepository) History(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
