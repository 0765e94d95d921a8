package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// TaskRepo persists tasks derived from plan steps, satisfying the
// CreateTask/UpdateTaskStatus half of router.Store.
type TaskRepo interface {
	Create(ctx context.Context, tx *gorm.DB, task *domain.Task) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, taskID int64, status domain.TaskStatus) error
	GetByID(ctx context.Context, tx *gorm.DB, taskID int64) (*domain.Task, error)
	ListByConversation(ctx context.Context, tx *gorm.DB, conversationID string, limit int) ([]*domain.Task, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

// Create persists a new task row. Task creation sits on the §7 "Fatal"
// write path (the caller cannot defer it and still return a result), so a
// transient serialization/deadlock failure — distinguished from a genuine
// constraint violation via isRetryablePG — gets exactly one immediate retry
// before being surfaced.
func (r *taskRepo) Create(ctx context.Context, tx *gorm.DB, task *domain.Task) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	err := transaction.WithContext(ctx).Create(task).Error
	if err != nil && isRetryablePG(err) {
		err = transaction.WithContext(ctx).Create(task).Error
	}
	return err
}

func (r *taskRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, taskID int64, status domain.TaskStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ?", taskID).
		Update("status", status).Error
}

func (r *taskRepo) GetByID(ctx context.Context, tx *gorm.DB, taskID int64) (*domain.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var task domain.Task
	if err := transaction.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID string, limit int) ([]*domain.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var tasks []*domain.Task
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}
