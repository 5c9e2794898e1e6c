package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/emberchat/ember/internal/chat"
	"github.com/emberchat/ember/internal/models"
)

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, chat.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrAuthentication
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// SetPresence persists the online flag and last-seen timestamp.
func (r *UserRepository) SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"online": online, "last_seen_at": lastSeen}).Error
}
