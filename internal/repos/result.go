package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// ResultRepo persists per-attempt dispatch outcomes.
type ResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, result *domain.Result) error
	ListByTask(ctx context.Context, tx *gorm.DB, taskID int64) ([]*domain.Result, error)
	LatestForTask(ctx context.Context, tx *gorm.DB, taskID int64) (*domain.Result, error)
}

type resultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return &resultRepo{db: db, log: baseLog.With("repo", "ResultRepo")}
}

func (r *resultRepo) Create(ctx context.Context, tx *gorm.DB, result *domain.Result) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(result).Error
}

func (r *resultRepo) ListByTask(ctx context.Context, tx *gorm.DB, taskID int64) ([]*domain.Result, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Result
	if err := transaction.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("attempt ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *resultRepo) LatestForTask(ctx context.Context, tx *gorm.DB, taskID int64) (*domain.Result, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.Result
	if err := transaction.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("attempt DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}
