package model

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the final state of one notification attempt
type Outcome string

const (
	// OutcomeSent means the remote push transport confirmed dispatch
	OutcomeSent Outcome = "sent"
	// OutcomeDelivered means a local fallback notification was scheduled
	OutcomeDelivered Outcome = "delivered"
	// OutcomeFailed means scheduling raised an error (recorded, not rethrown)
	OutcomeFailed Outcome = "failed"
	// OutcomeSuppressed means the recipient was viewing the conversation
	OutcomeSuppressed Outcome = "suppressed"
)

// Notification category tags
const (
	NotificationTypeChatMessage = "chat_message"
	NotificationTypeTest        = "test"
)

// NotificationLog is an append-only record of one notification attempt.
// Rows are immutable once written.
type NotificationLog struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Type         string    `json:"type" gorm:"size:50;not null"`
	Title        string    `json:"title" gorm:"size:255"`
	Body         string    `json:"body" gorm:"type:text"`
	Status       Outcome   `json:"status" gorm:"type:varchar(20);not null"`
	Platform     Platform  `json:"platform,omitempty" gorm:"type:varchar(20)"`
	ErrorMessage string    `json:"error_message,omitempty" gorm:"type:text"`
	SentAt       time.Time `json:"sent_at" gorm:"not null"`
}

// TableName keeps the table shared with the main application backend
func (NotificationLog) TableName() string {
	return "notification_logs"
}
