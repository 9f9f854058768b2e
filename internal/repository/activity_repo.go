package repository

import (
	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityRepository handles database operations for UserActivity
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Upsert overwrites the single current record per (user, platform).
// Records are never deleted, only overwritten.
func (r *ActivityRepository) Upsert(activity *model.UserActivity) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_in_chat":    activity.IsInChat,
			"last_activity": activity.LastActivity,
			"updated_at":    gorm.Expr("NOW()"),
		}),
	}).Create(activity).Error
}

// Get returns the most recent activity record for a user across platforms
func (r *ActivityRepository) Get(userID uuid.UUID) (*model.UserActivity, error) {
	var activity model.UserActivity
	err := r.db.
		Where("user_id = ?", userID).
		Order("last_activity DESC").
		First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}
