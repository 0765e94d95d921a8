package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// AssignmentRepo records which worker, in which order, handled each task.
type AssignmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, assignment *domain.Assignment) error
	ListByTask(ctx context.Context, tx *gorm.DB, taskID int64) ([]*domain.Assignment, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) Create(ctx context.Context, tx *gorm.DB, assignment *domain.Assignment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepo) ListByTask(ctx context.Context, tx *gorm.DB, taskID int64) ([]*domain.Assignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var assignments []*domain.Assignment
	if err := transaction.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("\"order\" ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
