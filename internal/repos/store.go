package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// ControllerStore composes the individual entity repos into the single
// persistence port router.Supervisor needs (router.Store), so the router
// package never has to import repos directly.
type ControllerStore struct {
	tasks          TaskRepo
	assignments    AssignmentRepo
	contexts       ContextSliceRepo
	results        ResultRepo
	performance    PerformanceRepo
	queueSnapshots QueueSnapshotRepo
	systemLogs     SystemLogRepo
	log            *logger.Logger
}

func NewControllerStore(db *gorm.DB, baseLog *logger.Logger) *ControllerStore {
	return &ControllerStore{
		tasks:          NewTaskRepo(db, baseLog),
		assignments:    NewAssignmentRepo(db, baseLog),
		contexts:       NewContextSliceRepo(db, baseLog),
		results:        NewResultRepo(db, baseLog),
		performance:    NewPerformanceRepo(db, baseLog),
		queueSnapshots: NewQueueSnapshotRepo(db, baseLog),
		systemLogs:     NewSystemLogRepo(db, baseLog),
		log:            baseLog.With("component", "ControllerStore"),
	}
}

func (s *ControllerStore) CreateTask(ctx context.Context, task *domain.Task) error {
	return s.tasks.Create(ctx, nil, task)
}

func (s *ControllerStore) UpdateTaskStatus(ctx context.Context, taskID int64, status domain.TaskStatus) error {
	return s.tasks.UpdateStatus(ctx, nil, taskID, status)
}

func (s *ControllerStore) RecordContext(ctx context.Context, slice *domain.ContextSlice) error {
	return s.contexts.Create(ctx, nil, slice)
}

func (s *ControllerStore) RecordAssignment(ctx context.Context, taskID int64, workerName string, order int) error {
	return s.assignments.Create(ctx, nil, &domain.Assignment{
		TaskID:     taskID,
		WorkerName: workerName,
		Order:      order,
	})
}

func (s *ControllerStore) RecordResult(ctx context.Context, result *domain.Result) error {
	return s.results.Create(ctx, nil, result)
}

func (s *ControllerStore) RecordPerformance(ctx context.Context, snapshot *domain.PerformanceSnapshot) error {
	return s.performance.Create(ctx, nil, snapshot)
}

// RecordQueueSnapshot is best-effort: a failure to durably log an enqueue
// event must never block the enqueue itself.
func (s *ControllerStore) RecordQueueSnapshot(ctx context.Context, taskID int64, priority domain.Priority, workerHint, reason string) {
	err := s.queueSnapshots.Create(ctx, nil, &domain.QueueSnapshot{
		TaskID:     taskID,
		Priority:   priority,
		WorkerName: workerHint,
		Reason:     reason,
	})
	if err != nil {
		s.log.Warn("record queue snapshot failed", "error", err, "task_id", taskID)
	}
}

// RecordSystemLog is best-effort: callers should never fail a request on a
// SystemLog write error.
func (s *ControllerStore) RecordSystemLog(ctx context.Context, level, message string) {
	if err := s.systemLogs.Create(ctx, nil, &domain.SystemLog{Level: level, Message: message}); err != nil {
		s.log.Warn("record system log failed", "error", err, "message", message)
	}
}
