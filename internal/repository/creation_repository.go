package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
)

var ErrCreationNotFound = errors.New("creation not found")

type CreationRepository interface {
	Create(ctx context.Context, c *domain.Creation) error
	ListByUser(ctx context.Context, userID uint, page PageRequest) (PageResult[domain.Creation], error)
	StatsByUser(ctx context.Context, userID uint) (total int64, tools int64, err error)
	DeleteForUser(ctx context.Context, userID, id uint) error
}

type GormCreationRepository struct{ db *gorm.DB }

func NewCreationRepository(db *gorm.DB) CreationRepository { return &GormCreationRepository{db: db} }

func (r *GormCreationRepository) Create(ctx context.Context, c *domain.Creation) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "creation", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "creation", "create", "success")
	return nil
}

func (r *GormCreationRepository) ListByUser(ctx context.Context, userID uint, page PageRequest) (PageResult[domain.Creation], error) {
	req := page.Normalize()
	base := r.db.WithContext(ctx).Model(&domain.Creation{}).Where("user_id = ?", userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "creation", "list_by_user", "error")
		return PageResult[domain.Creation]{}, err
	}
	var items []domain.Creation
	if err := base.Order("created_at DESC").Order("id DESC").Offset(req.Offset()).Limit(req.PageSize).Find(&items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "creation", "list_by_user", "error")
		return PageResult[domain.Creation]{}, err
	}
	observability.RecordRepositoryOperation(ctx, "creation", "list_by_user", "success")
	return newPage(req, total, items), nil
}

func (r *GormCreationRepository) StatsByUser(ctx context.Context, userID uint) (int64, int64, error) {
	var row struct {
		Total int64
		Tools int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Creation{}).
		Select("COUNT(*) AS total, COUNT(DISTINCT tool) AS tools").
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "creation", "stats_by_user", "error")
		return 0, 0, err
	}
	observability.RecordRepositoryOperation(ctx, "creation", "stats_by_user", "success")
	return row.Total, row.Tools, nil
}

func (r *GormCreationRepository) DeleteForUser(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Creation{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "creation", "delete_for_user", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "creation", "delete_for_user", "not_found")
		return ErrCreationNotFound
	}
	observability.RecordRepositoryOperation(ctx, "creation", "delete_for_user", "success")
	return nil
}
