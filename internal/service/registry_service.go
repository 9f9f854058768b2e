package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go"
	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
)

// TokenStore persists push-registration records
type TokenStore interface {
	Upsert(token *model.NotificationToken) error
	GetActive(userID uuid.UUID) ([]model.NotificationToken, error)
	Deactivate(userID uuid.UUID, platform model.Platform) error
}

// RegistryService owns push-token registration. The historical Expo/FCM/
// APNS/mock service variants collapse here behind the token-kind enum;
// which kind arrives is the client's capability, not a code path.
type RegistryService struct {
	tokens    TokenStore
	allowMock bool
}

func NewRegistryService(tokens TokenStore, allowMock bool) *RegistryService {
	if allowMock {
		log.Println("⚠️  Mock push tokens enabled - never run production with this flag")
	}
	return &RegistryService{tokens: tokens, allowMock: allowMock}
}

// Register upserts the registration for (user, platform). Idempotent:
// repeated registration with the same arguments leaves exactly one active
// record. Non-physical devices are rejected before any row is written, as
// are mock tokens unless explicitly allowed by configuration.
func (s *RegistryService) Register(ctx context.Context, req model.RegisterTokenRequest) error {
	if req.IsDevice != nil && !*req.IsDevice {
		return ErrUnsupportedEnvironment
	}
	if req.TokenType == model.TokenKindMock && !s.allowMock {
		return fmt.Errorf("mock tokens are disabled: %w", ErrUnsupportedEnvironment)
	}

	token := &model.NotificationToken{
		UserID:    req.UserID,
		Token:     req.Token,
		Platform:  req.Platform,
		TokenType: req.TokenType,
		IsActive:  true,
	}

	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.tokens.Upsert(token)
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return &NetworkError{Op: "token upsert", Err: err}
	}

	log.Printf("✅ Push token registered: user=%s platform=%s kind=%s", req.UserID, req.Platform, req.TokenType)
	return nil
}

// ActiveTokens returns the user's active registrations
func (s *RegistryService) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]model.NotificationToken, error) {
	tokens, err := s.tokens.GetActive(userID)
	if err != nil {
		return nil, &NetworkError{Op: "token lookup", Err: err}
	}
	return tokens, nil
}

// Unregister deactivates the (user, platform) registration. The row stays
// for audit; only the active flag flips.
func (s *RegistryService) Unregister(ctx context.Context, userID uuid.UUID, platform model.Platform) error {
	if err := s.tokens.Deactivate(userID, platform); err != nil {
		return &NetworkError{Op: "token deactivate", Err: err}
	}
	return nil
}
