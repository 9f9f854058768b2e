package model

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies the device platform a push token belongs to
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// TokenKind identifies which push capability issued the token.
// The historical token/FCM/mock service variants collapse into this enum.
type TokenKind string

const (
	TokenKindExpo TokenKind = "expo"
	TokenKindFCM  TokenKind = "fcm"
	TokenKindAPNS TokenKind = "apns"
	TokenKindMock TokenKind = "mock"
)

// NotificationToken is one push-registration record per (user, platform).
// Superseded registrations are deactivated, never deleted.
type NotificationToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_platform"`
	Token     string    `json:"token" gorm:"not null;size:500"`
	Platform  Platform  `json:"platform" gorm:"type:varchar(20);not null;uniqueIndex:idx_user_platform"`
	TokenType TokenKind `json:"token_type" gorm:"type:varchar(20);not null"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the table shared with the main application backend
func (NotificationToken) TableName() string {
	return "notification_tokens"
}
