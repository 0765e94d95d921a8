package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// WorkerRepo persists the registry's durable view of each worker (the
// "agents" table), separate from the registry's own in-memory live state.
type WorkerRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, worker *domain.Worker) error
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*domain.Worker, error)
	List(ctx context.Context, tx *gorm.DB) ([]*domain.Worker, error)
	UpdateStats(ctx context.Context, tx *gorm.DB, name string, totalTasks, successfulTasks, failedTasks int, avgExecutionTime, costPerTask float64) error
}

type workerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkerRepo(db *gorm.DB, baseLog *logger.Logger) WorkerRepo {
	return &workerRepo{db: db, log: baseLog.With("repo", "WorkerRepo")}
}

func (r *workerRepo) Upsert(ctx context.Context, tx *gorm.DB, worker *domain.Worker) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(worker).Error
}

func (r *workerRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*domain.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var worker domain.Worker
	if err := transaction.WithContext(ctx).Where("name = ?", name).First(&worker).Error; err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *workerRepo) List(ctx context.Context, tx *gorm.DB) ([]*domain.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var workers []*domain.Worker
	if err := transaction.WithContext(ctx).Find(&workers).Error; err != nil {
		return nil, err
	}
	return workers, nil
}

func (r *workerRepo) UpdateStats(ctx context.Context, tx *gorm.DB, name string, totalTasks, successfulTasks, failedTasks int, avgExecutionTime, costPerTask float64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&domain.Worker{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"total_tasks":        totalTasks,
			"successful_tasks":   successfulTasks,
			"failed_tasks":       failedTasks,
			"avg_execution_time": avgExecutionTime,
			"cost_per_task":      costPerTask,
		}).Error
}
