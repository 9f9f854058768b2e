package model

import "github.com/google/uuid"

// ========== Token Exchange DTOs ==========

type StreamTokenRequest struct {
	UserID    uuid.UUID `json:"userId" binding:"required"`
	UserName  string    `json:"userName" binding:"required,min=1,max=100"`
	UserEmail string    `json:"userEmail" binding:"omitempty,email"`
	UserRole  Role      `json:"userRole" binding:"required,oneof=student coach"`
}

type StreamTokenResponse struct {
	Token string `json:"token"`
}

// ========== Notification DTOs ==========

type RegisterTokenRequest struct {
	UserID    uuid.UUID `json:"userId" binding:"required"`
	Token     string    `json:"token" binding:"required,max=500"`
	Platform  Platform  `json:"platform" binding:"required,oneof=ios android web"`
	TokenType TokenKind `json:"tokenType" binding:"required,oneof=expo fcm apns mock"`
	// IsDevice reports whether the caller runs on physical hardware.
	// Simulators/emulators cannot receive push and are rejected; omitted
	// means physical.
	IsDevice *bool `json:"isDevice"`
}

// TestWebhookRequest simulates an inbound chat message for manual
// verification of the delivery path.
type TestWebhookRequest struct {
	UserID     uuid.UUID `json:"userId" binding:"required"`
	SenderName string    `json:"senderName" binding:"required"`
	Text       string    `json:"text" binding:"required"`
	ChannelID  string    `json:"channelId"`
}

// ========== Activity DTOs ==========

type ActivityRequest struct {
	UserID   uuid.UUID `json:"userId" binding:"required"`
	Platform Platform  `json:"platform" binding:"required,oneof=ios android web"`
	IsInChat *bool     `json:"isInChat" binding:"required"`
}

// ActivityBroadcast is the payload fanned out over Redis so every instance
// converges on the same cached flag.
type ActivityBroadcast struct {
	UserID     uuid.UUID `json:"user_id"`
	IsInChat   bool      `json:"is_in_chat"`
	Platform   Platform  `json:"platform,omitempty"`
	ObservedAt int64     `json:"observed_at"` // unix nanos, monotonic guard
}

// ========== Session DTOs ==========

type BootstrapRequest struct {
	UserID      uuid.UUID `json:"userId" binding:"required"`
	UserName    string    `json:"userName" binding:"required,min=1,max=100"`
	UserRole    Role      `json:"userRole" binding:"required,oneof=student coach"`
	PartnerID   uuid.UUID `json:"partnerId" binding:"required"`
	PartnerName string    `json:"partnerName" binding:"required,min=1,max=100"`
}

type SendMessageRequest struct {
	ChannelID string `json:"channelId" binding:"required"`
	Text      string `json:"text" binding:"required,max=5000"`
}

type SessionStatusResponse struct {
	Ready   bool         `json:"ready"`
	Session *ChatSession `json:"session,omitempty"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
