package notifications

import (
	"context"
	"time"

	"github.com/agorahq/agora/backend/internal/models"
	"gorm.io/gorm"
)

// Store is the durable notification table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

// List returns the user's notifications, newest first.
func (s *Store) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead flags the given notifications of the user as read.
func (s *Store) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore removes read notifications created before cutoff. Unread
// ones are kept whatever their age.
func (s *Store) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
