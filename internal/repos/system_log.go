package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// SystemLogRepo is a best-effort durable record of notable controller
// events, independent of the structured logger's own output stream. Callers
// should not fail a request on a SystemLogRepo error.
type SystemLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *domain.SystemLog) error
	Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.SystemLog, error)
}

type systemLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemLogRepo(db *gorm.DB, baseLog *logger.Logger) SystemLogRepo {
	return &systemLogRepo{db: db, log: baseLog.With("repo", "SystemLogRepo")}
}

func (r *systemLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *domain.SystemLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(entry).Error
}

func (r *systemLogRepo) Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.SystemLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 200
	}
	var entries []*domain.SystemLog
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
