package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// PerformanceRepo durably records each result the router accepts so /stats
// can report history beyond the tracker's own in-memory rolling windows.
// Failed dispatches and validator-rejected answers are not recorded here.
type PerformanceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, snapshot *domain.PerformanceSnapshot) error
	ListByWorker(ctx context.Context, tx *gorm.DB, workerName string, limit int) ([]*domain.PerformanceSnapshot, error)
}

type performanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPerformanceRepo(db *gorm.DB, baseLog *logger.Logger) PerformanceRepo {
	return &performanceRepo{db: db, log: baseLog.With("repo", "PerformanceRepo")}
}

func (r *performanceRepo) Create(ctx context.Context, tx *gorm.DB, snapshot *domain.PerformanceSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(snapshot).Error
}

func (r *performanceRepo) ListByWorker(ctx context.Context, tx *gorm.DB, workerName string, limit int) ([]*domain.PerformanceSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var snapshots []*domain.PerformanceSnapshot
	if err := transaction.WithContext(ctx).
		Where("worker_name = ?", workerName).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
