package repository

import (
	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationLogRepository handles database operations for NotificationLog.
// The table is append-only; there is deliberately no update or delete.
type NotificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Create appends one log entry
func (r *NotificationLogRepository) Create(entry *model.NotificationLog) error {
	return r.db.Create(entry).Error
}

// ListByUser returns the newest entries for a user
func (r *NotificationLogRepository) ListByUser(userID uuid.UUID, limit int) ([]model.NotificationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs := []model.NotificationLog{}
	err := r.db.
		Where("user_id = ?", userID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
