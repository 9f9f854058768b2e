package model

import (
	"time"

	"github.com/google/uuid"
)

// UserActivity is the persisted form of the per-user activity flag: whether
// the user is currently viewing the chat screen. Exactly one current record
// per (user, platform); overwritten on every mount/unmount and app-lifecycle
// transition, never deleted.
type UserActivity struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_activity_user_platform"`
	IsInChat     bool      `json:"is_in_chat" gorm:"not null;default:false"`
	LastActivity time.Time `json:"last_activity" gorm:"not null"`
	Platform     Platform  `json:"platform" gorm:"type:varchar(20);uniqueIndex:idx_activity_user_platform"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName keeps the table shared with the main application backend
func (UserActivity) TableName() string {
	return "user_activity"
}
