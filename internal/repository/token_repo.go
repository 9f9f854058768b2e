package repository

import (
	"github.com/coachlink/coachlink/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository handles database operations for NotificationToken
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert inserts or refreshes the registration for a (user, platform) pair.
// Repeated registration replaces the prior token in place, so at most one
// active record exists per pair.
func (r *TokenRepository) Upsert(token *model.NotificationToken) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"token":      token.Token,
			"token_type": token.TokenType,
			"is_active":  true,
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(token).Error
}

// GetActive returns all active registrations for a user
func (r *TokenRepository) GetActive(userID uuid.UUID) ([]model.NotificationToken, error) {
	var tokens []model.NotificationToken
	err := r.db.
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&tokens).Error
	return tokens, err
}

// Deactivate flips is_active off for a (user, platform) pair. Rows are
// never deleted; superseded registrations stay for audit.
func (r *TokenRepository) Deactivate(userID uuid.UUID, platform model.Platform) error {
	return r.db.Model(&model.NotificationToken{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Update("is_active", false).Error
}
