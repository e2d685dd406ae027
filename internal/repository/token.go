package repository

import (
	"context"
	"errors"
	"staffdesk/internal/model"
	"time"

	"gorm.io/gorm"
)

// ResetTokenInterface defines the interface for password reset token persistence
type ResetTokenInterface interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	InvalidateAllFor(ctx context.Context, userID int64) error
	FindValid(ctx context.Context, userID int64, token string) (*model.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id int64) error
	WithTx(tx *gorm.DB) any
}

type ResetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepository(db *gorm.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) Create(ctx context.Context, token *model.PasswordResetToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// InvalidateAllFor marks every unused token of the user as used. Issuing a
// new token always starts from a clean slate so at most one code is live.
func (r *ResetTokenRepository) InvalidateAllFor(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&model.PasswordResetToken{}).
		Where("user_id = ? AND used = ?", userID, false).
		Update("used", true).Error
}

// FindValid matches by the full token or its 6-character short code, and only
// returns tokens that are unused and unexpired.
func (r *ResetTokenRepository) FindValid(ctx context.Context, userID int64, token string) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND used = ? AND expires_at > ?", userID, false, time.Now())
	if len(token) == 6 {
		query = query.Where("token LIKE ?", token+"%")
	} else {
		query = query.Where("token = ?", token)
	}
	if err := query.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.PasswordResetToken{}).
		Where("id = ?", id).Update("used", true).Error
}

func (r *ResetTokenRepository) WithTx(tx *gorm.DB) any {
	return &ResetTokenRepository{db: tx}
}
