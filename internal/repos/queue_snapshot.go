package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// QueueSnapshotRepo durably records enqueue events for observability; the
// live queue itself (internal/queue) is in-memory and never read from here.
type QueueSnapshotRepo interface {
	Create(ctx context.Context, tx *gorm.DB, snapshot *domain.QueueSnapshot) error
	Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.QueueSnapshot, error)
}

type queueSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueueSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) QueueSnapshotRepo {
	return &queueSnapshotRepo{db: db, log: baseLog.With("repo", "QueueSnapshotRepo")}
}

func (r *queueSnapshotRepo) Create(ctx context.Context, tx *gorm.DB, snapshot *domain.QueueSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(snapshot).Error
}

func (r *queueSnapshotRepo) Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.QueueSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var snapshots []*domain.QueueSnapshot
	if err := transaction.WithContext(ctx).
		Order("enqueued_at DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
