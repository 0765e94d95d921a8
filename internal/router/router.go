// Package router implements the router/supervisor (spec component C8): the
// ten-step worker-selection algorithm, per-plan-step continuation, and the
// background queue-drain loop. Grounded on the teacher's
// jobs/orchestrator.Engine (stage list -> run -> retry -> fallback) and
// jobs/worker.Worker (panic-recovered, heartbeat-guarded background loop),
// generalized from "DB job_run stage" to "in-memory task step" and from
// "poll job_run table" to "pop the priority heap on worker idle".
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/health"
	"github.com/fleetctl/masterctl/internal/observability"
	"github.com/fleetctl/masterctl/internal/platform/logger"
	"github.com/fleetctl/masterctl/internal/queue"
	"github.com/fleetctl/masterctl/internal/registry"
	"github.com/fleetctl/masterctl/internal/tracker"
	"github.com/fleetctl/masterctl/internal/validator"
	"github.com/fleetctl/masterctl/internal/workerclient"
)

// Hardware thresholds, per spec.md §4.8 step 2.
const (
	MaxCPUPercent    = 80.0
	MaxMemoryPercent = 90.0
)

// DefaultMaxRetries mirrors spec.md §4.8 step 8's default.
const DefaultMaxRetries = 3

// Outcome classifies how one RouteStep call resolved.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeUseBuiltin      Outcome = "use_builtin"
	OutcomeQueued          Outcome = "queued"
	OutcomeQueuedOverload  Outcome = "queued_overload"
	OutcomeQueuedForWorker Outcome = "queued_for_worker"
	OutcomeFailed          Outcome = "failed"
	OutcomeCancelled       Outcome = "cancelled"
)

var (
	ErrNotLeader  = errors.New("router: this replica is not the active leader")
	ErrCancelled  = errors.New("router: task cancelled")
	ErrQueueFull  = queue.ErrQueueFull
)

// StepResult is the outcome of one RouteStep call.
type StepResult struct {
	Outcome    Outcome
	WorkerName string
	Answer     string
	Quality    float64
	Attempt    int
	Err        error
}

// BuiltinResponder is the controller's own fallback "brain", consulted in
// step 1 when no worker of the requested capability is registered at all.
// A nil BuiltinResponder always defers to the queue.
type BuiltinResponder interface {
	Respond(ctx context.Context, task domain.Task, contextStr string) (answer string, ok bool)
}

// Store is the narrow persistence surface RouteStep/RunPlan need. The
// concrete implementation (internal/repos) is gorm-backed; this package
// only depends on the interface, per the capability-port pattern used by
// planner/contextselect/validator.
type Store interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	UpdateTaskStatus(ctx context.Context, taskID int64, status domain.TaskStatus) error
	RecordContext(ctx context.Context, slice *domain.ContextSlice) error
	RecordAssignment(ctx context.Context, taskID int64, workerName string, order int) error
	RecordResult(ctx context.Context, result *domain.Result) error
	RecordPerformance(ctx context.Context, snapshot *domain.PerformanceSnapshot) error
	RecordQueueSnapshot(ctx context.Context, taskID int64, priority domain.Priority, workerHint, reason string)
	RecordSystemLog(ctx context.Context, level, message string)
}

// LeaderGate lets RunPlan refuse work on a standby replica, per the leader
// election invariant (only the active replica processes requests).
type LeaderGate interface {
	ShouldProcessRequest() bool
}

// Config bundles the tunables RouteStep/RunPlan consult.
type Config struct {
	MaxRetries      int
	StepTimeout     time.Duration // per-dispatch deadline, spec.md §5
	FreshnessWindow time.Duration
	QueuePriority   domain.Priority // priority used for plan-queued work items; defaults to Normal
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = workerclient.DefaultTimeout
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = registry.DefaultFreshnessWindow
	}
	return c
}

// Supervisor wires every core component together to route one task step at
// a time, retrying and falling back per spec.md §4.8.
type Supervisor struct {
	cfg Config
	log *logger.Logger

	registry  *registry.Registry
	tracker   *tracker.Tracker
	health    *health.Monitor
	queue     *queue.Queue
	validator validator.Port
	workers   *workerclient.Client
	builtin   BuiltinResponder
	store     Store
	leader    LeaderGate
	metrics   *observability.Metrics
}

func New(cfg Config, log *logger.Logger, reg *registry.Registry, trk *tracker.Tracker, hm *health.Monitor, q *queue.Queue, v validator.Port, wc *workerclient.Client, builtin BuiltinResponder, store Store, leader LeaderGate, metrics *observability.Metrics) *Supervisor {
	return &Supervisor{
		cfg:       cfg.withDefaults(),
		log:       log.With("component", "router.Supervisor"),
		registry:  reg,
		tracker:   trk,
		health:    hm,
		queue:     q,
		validator: v,
		workers:   wc,
		builtin:   builtin,
		store:     store,
		leader:    leader,
		metrics:   metrics,
	}
}

// Validator exposes the configured answer validator so callers outside this
// package (controller.Service's /stats reporting) can reach its Stats
// method without router needing to know about that capability itself.
func (s *Supervisor) Validator() validator.Port {
	return s.validator
}

// CancelTask removes any queued work for taskID so it can never be dequeued
// again, and marks the task cancelled in the store. It does not interrupt a
// dispatch already in flight to a worker.
func (s *Supervisor) CancelTask(ctx context.Context, taskID int64) error {
	s.queue.CancelTask(taskID)
	return s.store.UpdateTaskStatus(ctx, taskID, domain.TaskCancelled)
}

// RouteStep implements the ten-step algorithm in spec.md §4.8 for one task.
// contextStr is the (possibly empty) context block C3 selected for this
// task; it is forwarded to the worker verbatim.
func (s *Supervisor) RouteStep(ctx context.Context, task *domain.Task, contextStr string) StepResult {
	if s.leader != nil && !s.leader.ShouldProcessRequest() {
		return StepResult{Outcome: OutcomeFailed, Err: ErrNotLeader}
	}

	excluded := make(map[string]bool)
	var lastErr error

	for attempt := 1; ; attempt++ {
		// Step 1: live workers of the requested capability.
		candidates := s.registry.Query(string(task.TaskType), s.cfg.FreshnessWindow)
		candidates = excludeNames(candidates, excluded)
		if len(candidates) == 0 {
			if s.builtin != nil {
				if answer, ok := s.builtin.Respond(ctx, *task, contextStr); ok {
					s.store.RecordSystemLog(ctx, "info", fmt.Sprintf("task %d answered by builtin fallback: no live worker for capability %s", task.ID, task.TaskType))
					return StepResult{Outcome: OutcomeUseBuiltin, Answer: answer, Attempt: attempt}
				}
			}
			s.enqueue(ctx, task, domain.PriorityCritical, "", "no live workers for capability")
			s.setStatus(ctx, task, domain.TaskQueued)
			return StepResult{Outcome: OutcomeQueued, Attempt: attempt}
		}

		// Step 2: hardware health.
		hwHealthy := filterHardware(candidates)
		if len(hwHealthy) == 0 {
			s.enqueue(ctx, task, domain.PriorityHigh, "", "all capable workers over hardware threshold")
			s.setStatus(ctx, task, domain.TaskQueued)
			return StepResult{Outcome: OutcomeQueuedOverload, Attempt: attempt}
		}

		// Step 3: intersect with the health monitor's healthy/degraded set.
		healthy := s.filterHealthStatus(hwHealthy)
		if len(healthy) == 0 {
			s.enqueue(ctx, task, domain.PriorityCritical, "", "no hardware-healthy worker passes health check")
			s.setStatus(ctx, task, domain.TaskQueued)
			return StepResult{Outcome: OutcomeQueued, Attempt: attempt}
		}

		// Step 4: rank by tracker score, pick top.
		top := s.pickTop(healthy, string(task.TaskType))

		// Step 5: if busy, queue bound to that worker.
		if top.Status == domain.WorkerBusy {
			s.enqueue(ctx, task, domain.PriorityCritical, top.Name, "top-ranked worker is busy")
			s.setStatus(ctx, task, domain.TaskQueued)
			return StepResult{Outcome: OutcomeQueuedForWorker, WorkerName: top.Name, Attempt: attempt}
		}

		// Step 6: assign.
		s.registry.MarkBusy(top.Name)
		_ = s.store.RecordAssignment(ctx, task.ID, top.Name, attempt)
		s.setStatus(ctx, task, domain.TaskAssigned)
		s.log.Info("task assigned", "task_id", task.ID, "worker", top.Name, "attempt", attempt)

		// Step 7: dispatch with a per-step deadline.
		dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
		started := time.Now()
		s.setStatus(ctx, task, domain.TaskProcessing)
		resp, err := s.workers.Execute(dispatchCtx, top.Host, top.Port, workerclient.ExecuteRequest{
			TaskID:   fmt.Sprintf("%d", task.ID),
			TaskDesc: task.Description,
			TaskType: string(task.TaskType),
			Context:  contextStr,
		})
		cancel()
		elapsed := time.Since(started).Seconds()

		// Step 8: transport or semantic failure.
		if err != nil && !errors.Is(err, workerclient.ErrSemanticFailure) {
			s.recordFailure(ctx, top.Name, string(task.TaskType), elapsed)
			excluded[top.Name] = true
			lastErr = err
			if attempt >= s.cfg.MaxRetries {
				s.setStatus(ctx, task, domain.TaskFailed)
				s.store.RecordSystemLog(ctx, "error", fmt.Sprintf("task %d failed after %d attempts: %v", task.ID, attempt, lastErr))
				return StepResult{Outcome: OutcomeFailed, Attempt: attempt, Err: lastErr}
			}
			continue
		}
		if errors.Is(err, workerclient.ErrSemanticFailure) {
			s.recordFailure(ctx, top.Name, string(task.TaskType), elapsed)
			excluded[top.Name] = true
			lastErr = err
			if attempt >= s.cfg.MaxRetries {
				s.setStatus(ctx, task, domain.TaskFailed)
				s.store.RecordSystemLog(ctx, "error", fmt.Sprintf("task %d failed after %d attempts: %v", task.ID, attempt, lastErr))
				return StepResult{Outcome: OutcomeFailed, Attempt: attempt, Err: lastErr}
			}
			continue
		}

		// Step 9: validate the answer.
		verdict := s.validator.Validate(ctx, task.Description, resp.Output, top.Name)
		quality := verdict.QualityScore
		s.tracker.LogResult(top.Name, string(task.TaskType), true, elapsed, resp.Tokens, resp.Cost, &quality)
		s.registry.RecordOutcome(top.Name, true, elapsed)

		if s.metrics != nil {
			outcome := "accept"
			if verdict.ShouldRetry {
				outcome = "retry"
			}
			s.metrics.IncValidation(top.Name, outcome)
		}

		if verdict.ShouldRetry {
			excluded[top.Name] = true
			lastErr = fmt.Errorf("router: validator recommended retry: %s", verdict.Reasoning)
			if attempt >= s.cfg.MaxRetries {
				s.setStatus(ctx, task, domain.TaskFailed)
				s.store.RecordSystemLog(ctx, "error", fmt.Sprintf("task %d failed after %d attempts: %v", task.ID, attempt, lastErr))
				return StepResult{Outcome: OutcomeFailed, Attempt: attempt, Err: lastErr}
			}
			continue
		}

		// Step 10: accept.
		if s.metrics != nil {
			s.metrics.IncDispatch(top.Name, "completed")
		}
		_ = s.store.RecordResult(ctx, &domain.Result{
			TaskID:        task.ID,
			Attempt:       attempt,
			WorkerName:    top.Name,
			Success:       true,
			Output:        resp.Output,
			ExecutionTime: elapsed,
			Quality:       quality,
			Tokens:        resp.Tokens,
			Cost:          resp.Cost,
		})
		_ = s.store.RecordPerformance(ctx, &domain.PerformanceSnapshot{
			WorkerName: top.Name,
			TaskType:   task.TaskType,
			Success:    true,
			Duration:   elapsed,
			Quality:    quality,
		})
		s.setStatus(ctx, task, domain.TaskCompleted)
		return StepResult{Outcome: OutcomeCompleted, WorkerName: top.Name, Answer: resp.Output, Quality: quality, Attempt: attempt}
	}
}

func (s *Supervisor) recordFailure(ctx context.Context, workerName, taskType string, elapsed float64) {
	s.tracker.LogResult(workerName, taskType, false, elapsed, 0, 0, nil)
	s.health.RecordFailure(workerName)
	s.registry.RecordOutcome(workerName, false, elapsed)
	if s.metrics != nil {
		s.metrics.IncDispatch(workerName, "failure")
	}
}

func (s *Supervisor) enqueue(ctx context.Context, task *domain.Task, priority domain.Priority, workerHint, reason string) {
	if _, err := s.queue.Enqueue(task.ID, task.TaskType, priority, workerHint, reason, s.cfg.MaxRetries); err != nil {
		s.log.Warn("enqueue failed", "task_id", task.ID, "error", err)
		return
	}
	s.store.RecordQueueSnapshot(ctx, task.ID, priority, workerHint, reason)
	s.reportQueueDepth()
}

func (s *Supervisor) reportQueueDepth() {
	if s.metrics == nil {
		return
	}
	stats := s.queue.Stats()
	for priority, count := range stats.ByPriority {
		s.metrics.SetQueueDepth(string(priority), count)
	}
}

func (s *Supervisor) setStatus(ctx context.Context, task *domain.Task, status domain.TaskStatus) {
	task.Status = status
	_ = s.store.UpdateTaskStatus(ctx, task.ID, status)
}

func excludeNames(workers []domain.Worker, excluded map[string]bool) []domain.Worker {
	if len(excluded) == 0 {
		return workers
	}
	out := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		if !excluded[w.Name] {
			out = append(out, w)
		}
	}
	return out
}

func filterHardware(workers []domain.Worker) []domain.Worker {
	out := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		if w.CPUPercent < MaxCPUPercent && w.MemoryPercent < MaxMemoryPercent {
			out = append(out, w)
		}
	}
	return out
}

func (s *Supervisor) filterHealthStatus(workers []domain.Worker) []domain.Worker {
	out := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		status := s.health.Status(w.Name)
		if status == domain.HealthHealthy || status == domain.HealthDegraded {
			out = append(out, w)
		}
	}
	return out
}

// pickTop ranks by tracker.Score descending; registry.Query's own ordering
// (idle-before-busy, then cpu, then memory) breaks ties.
func (s *Supervisor) pickTop(workers []domain.Worker, taskType string) domain.Worker {
	best := workers[0]
	bestScore := s.tracker.Score(best.Name, taskType)
	if s.metrics != nil {
		s.metrics.SetWorkerScore(best.Name, taskType, bestScore)
	}
	for _, w := range workers[1:] {
		score := s.tracker.Score(w.Name, taskType)
		if s.metrics != nil {
			s.metrics.SetWorkerScore(w.Name, taskType, score)
		}
		if score > bestScore {
			best, bestScore = w, score
		}
	}
	return best
}

// DrainLoop wakes on the registry's idle signal or a 2s ticker and then
// retries the head of the queue, so queued work is picked up whenever a
// worker frees up. Grounded on jobs/worker.Worker.runLoop's ticker-driven
// claim loop, generalized from "poll job_run table every second" to "wake on
// idle signal, pop the in-memory heap". retryFunc is supplied by
// internal/app, which knows how to rebuild a *domain.Task from a queue.Item
// (tasks live in internal/repos, which router must not import); a queue.Item
// carries no context string, so the retried step is routed without one.
func (s *Supervisor) DrainLoop(ctx context.Context, retryFunc func(context.Context, *queue.Item) bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("drain loop panic", "panic", r)
		}
	}()

	idle := s.registry.IdleSignal()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("drain loop stopped")
			return
		case <-idle:
			s.drainOnce(ctx, retryFunc)
		case <-ticker.C:
			s.drainOnce(ctx, retryFunc)
		}
	}
}

func (s *Supervisor) drainOnce(ctx context.Context, retryFunc func(context.Context, *queue.Item) bool) {
	for {
		if s.queue.Size() == 0 {
			return
		}
		dequeueCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		item, ok := s.queue.Dequeue(dequeueCtx)
		cancel()
		if !ok {
			return
		}
		if s.metrics != nil {
			s.metrics.ObserveQueueWait(time.Since(item.EnqueuedAt))
		}
		succeeded := retryFunc(ctx, item)
		s.queue.MarkComplete(item.ID, succeeded)
		s.reportQueueDepth()
		if !succeeded {
			return
		}
	}
}

// RelatedToPrior reports whether task shares more than 3 common words with
// prior, per spec.md §4.8 "any two tasks sharing >3 common words are
// flagged related". This is a logging-only signal (Open Question (a) in
// DESIGN.md): it does not affect routing or context selection.
func RelatedToPrior(task, prior string) (related bool, shared int) {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(prior)) {
		if len(w) > 2 {
			set[w] = true
		}
	}
	count := 0
	for _, w := range strings.Fields(strings.ToLower(task)) {
		if set[w] {
			count++
		}
	}
	return count > 3, count
}
