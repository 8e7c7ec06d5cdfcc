package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// RefreshTokenRepository is the revocation store for refresh tokens. Rows
// are keyed by the literal token string; a user may hold many.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uint, token string, expiresAt time.Time) (*domain.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	FindByTokenForUser(ctx context.Context, userID uint, token string) (*domain.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountByUserID(ctx context.Context, userID uint) (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(ctx context.Context, userID uint, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	row := &domain.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt.UTC()}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "create", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "create", "success")
	return row, nil
}

func (r *GormRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	return r.findOne(ctx, "find_by_token", r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *GormRefreshTokenRepository) FindByTokenForUser(ctx context.Context, userID uint, token string) (*domain.RefreshToken, error) {
	return r.findOne(ctx, "find_by_token_for_user", r.db.WithContext(ctx).Where("token = ? AND user_id = ?", token, userID))
}

func (r *GormRefreshTokenRepository) findOne(ctx context.Context, op string, q *gorm.DB) (*domain.RefreshToken, error) {
	var row domain.RefreshToken
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "refresh_token", op, "not_found")
			return nil, ErrRefreshTokenNotFound
		}
		observability.RecordRepositoryOperation(ctx, "refresh_token", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", op, "success")
	return &row, nil
}

func (r *GormRefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res := r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.RefreshToken{})
	return r.recordDelete(ctx, "delete_by_token", res)
}

func (r *GormRefreshTokenRepository) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.RefreshToken{}, id)
	_, err := r.recordDelete(ctx, "delete_by_id", res)
	return err
}

func (r *GormRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.RefreshToken{})
	return r.recordDelete(ctx, "delete_by_user_id", res)
}

func (r *GormRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&domain.RefreshToken{})
	return r.recordDelete(ctx, "delete_expired", res)
}

func (r *GormRefreshTokenRepository) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "count_by_user_id", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "count_by_user_id", "success")
	return n, nil
}

func (r *GormRefreshTokenRepository) recordDelete(ctx context.Context, op string, res *gorm.DB) (int64, error) {
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", op, "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", op, "success")
	return res.RowsAffected, nil
}
