package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/health"
	"github.com/fleetctl/masterctl/internal/platform/logger"
	"github.com/fleetctl/masterctl/internal/queue"
	"github.com/fleetctl/masterctl/internal/registry"
	"github.com/fleetctl/masterctl/internal/tracker"
	"github.com/fleetctl/masterctl/internal/validator"
	"github.com/fleetctl/masterctl/internal/workerclient"
)

func TestExcludeNames(t *testing.T) {
	workers := []domain.Worker{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	out := excludeNames(workers, map[string]bool{"b": true})
	names := make([]string, 0, len(out))
	for _, w := range out {
		names = append(names, w.Name)
	}
	require.Equal(t, []string{"a", "c"}, names)
}

func TestFilterHardwareRejectsOverThreshold(t *testing.T) {
	workers := []domain.Worker{
		{Name: "ok", CPUPercent: 10, MemoryPercent: 10},
		{Name: "hot-cpu", CPUPercent: MaxCPUPercent, MemoryPercent: 10},
		{Name: "hot-mem", CPUPercent: 10, MemoryPercent: MaxMemoryPercent},
	}
	out := filterHardware(workers)
	require.Len(t, out, 1)
	require.Equal(t, "ok", out[0].Name)
}

func TestRelatedToPriorCountsSharedWords(t *testing.T) {
	related, shared := RelatedToPrior("write a python function to parse csv files", "write a python script to parse json files")
	require.True(t, related)
	require.Greater(t, shared, 3)
}

func TestRelatedToPriorFalseWhenFewSharedWords(t *testing.T) {
	related, _ := RelatedToPrior("draw me a cat picture", "write a fibonacci function in go")
	require.False(t, related)
}

// fakeStore is an in-memory router.Store used by RouteStep integration tests.
type fakeStore struct {
	mu       sync.Mutex
	statuses map[int64]domain.TaskStatus
	results  []*domain.Result
}

func newFakeStore() *fakeStore {
	return &fakeStore{statuses: make(map[int64]domain.TaskStatus)}
}

func (f *fakeStore) CreateTask(ctx context.Context, task *domain.Task) error { return nil }
func (f *fakeStore) UpdateTaskStatus(ctx context.Context, taskID int64, status domain.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[taskID] = status
	return nil
}
func (f *fakeStore) RecordContext(ctx context.Context, slice *domain.ContextSlice) error { return nil }
func (f *fakeStore) RecordAssignment(ctx context.Context, taskID int64, workerName string, order int) error {
	return nil
}
func (f *fakeStore) RecordResult(ctx context.Context, result *domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}
func (f *fakeStore) RecordPerformance(ctx context.Context, snapshot *domain.PerformanceSnapshot) error {
	return nil
}
func (f *fakeStore) RecordQueueSnapshot(ctx context.Context, taskID int64, priority domain.Priority, workerHint, reason string) {
}
func (f *fakeStore) RecordSystemLog(ctx context.Context, level, message string) {}

func (f *fakeStore) statusOf(taskID int64) domain.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[taskID]
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func newSupervisor(t *testing.T, store Store, builtin BuiltinResponder) (*Supervisor, *registry.Registry, *health.Monitor) {
	t.Helper()
	reg := registry.New()
	trk := tracker.New()
	hm := health.New(trk)
	q := queue.New(10)
	wc := workerclient.New(0)
	s := New(Config{MaxRetries: 2}, testLogger(t), reg, trk, hm, q, validator.NewFallback(), wc, builtin, store, nil, nil)
	return s, reg, hm
}

func TestRouteStepNoWorkersUsesBuiltin(t *testing.T) {
	store := newFakeStore()
	builtin := fakeBuiltin{answer: "direct answer", ok: true}
	s, _, _ := newSupervisor(t, store, builtin)

	task := &domain.Task{ID: 1, TaskType: domain.CapabilityCoding}
	result := s.RouteStep(context.Background(), task, "")
	require.Equal(t, OutcomeUseBuiltin, result.Outcome)
	require.Equal(t, "direct answer", result.Answer)
}

func TestRouteStepNoWorkersNoBuiltinQueues(t *testing.T) {
	store := newFakeStore()
	s, _, _ := newSupervisor(t, store, nil)

	task := &domain.Task{ID: 2, TaskType: domain.CapabilityCoding}
	result := s.RouteStep(context.Background(), task, "")
	require.Equal(t, OutcomeQueued, result.Outcome)
	require.Equal(t, domain.TaskQueued, store.statusOf(2))
}

func TestRouteStepDispatchesAndCompletesOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workerclient.ExecuteResponse{Success: true, Output: "a correct and complete response here"})
	}))
	defer server.Close()

	store := newFakeStore()
	s, reg, hm := newSupervisor(t, store, nil)

	host, portStr := splitHostPort(t, server.URL)
	reg.Register(domain.Worker{Name: "coder-1", Host: host, Port: portStr, Capability: domain.CapabilityCoding})
	hm.RecordHeartbeat("coder-1", domain.WorkerIdle)

	task := &domain.Task{ID: 3, TaskType: domain.CapabilityCoding, Description: "write a function"}
	result := s.RouteStep(context.Background(), task, "")
	require.Equal(t, OutcomeCompleted, result.Outcome)
	require.Equal(t, "coder-1", result.WorkerName)
	require.Equal(t, domain.TaskCompleted, store.statusOf(3))
	require.Len(t, store.results, 1)
}

func TestRouteStepFailsAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workerclient.ExecuteResponse{Success: false, Output: "nope"})
	}))
	defer server.Close()

	store := newFakeStore()
	s, reg, hm := newSupervisor(t, store, nil)

	// Two distinct capable workers pointed at the same failing server: each
	// retry excludes the previously-tried worker, so the loop exhausts both
	// before MaxRetries is reached instead of queueing on an empty candidate set.
	host, port := splitHostPort(t, server.URL)
	reg.Register(domain.Worker{Name: "coder-1", Host: host, Port: port, Capability: domain.CapabilityCoding})
	reg.Register(domain.Worker{Name: "coder-2", Host: host, Port: port, Capability: domain.CapabilityCoding})
	hm.RecordHeartbeat("coder-1", domain.WorkerIdle)
	hm.RecordHeartbeat("coder-2", domain.WorkerIdle)

	task := &domain.Task{ID: 4, TaskType: domain.CapabilityCoding, Description: "write a function"}
	result := s.RouteStep(context.Background(), task, "")
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Equal(t, domain.TaskFailed, store.statusOf(4))
}

func TestCancelTaskRemovesQueuedWorkAndMarksCancelled(t *testing.T) {
	store := newFakeStore()
	s, _, _ := newSupervisor(t, store, nil)

	task := &domain.Task{ID: 5, TaskType: domain.CapabilityCoding}
	result := s.RouteStep(context.Background(), task, "") // no workers registered -> queued
	require.Equal(t, OutcomeQueued, result.Outcome)

	require.NoError(t, s.CancelTask(context.Background(), 5))
	require.Equal(t, domain.TaskCancelled, store.statusOf(5))

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, ok := s.queue.Dequeue(ctx)
	require.False(t, ok)
}

// recordingValidator lets a test control ShouldRetry per worker name, so it
// can drive the step-9 validator-rejection retry path deterministically.
type recordingValidator struct {
	mu        sync.Mutex
	calls     []string
	rejectFor map[string]bool
}

func (v *recordingValidator) Validate(_ context.Context, _, _, workerName string) validator.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, workerName)
	if v.rejectFor[workerName] {
		return validator.Result{QualityScore: 3, ShouldRetry: true, Reasoning: "quality too low"}
	}
	return validator.Result{IsComplete: true, QualityScore: 8, ShouldRetry: false, Reasoning: "quality acceptable"}
}

// TestRouteStepValidatorRejectionExcludesWorkerAndRetries exercises spec.md
// §8 scenario S5: the top-ranked worker (coder-w2, higher tracker score)
// returns a low-quality answer, the validator flags it for retry, and
// RouteStep must exclude coder-w2 from the next pickTop rather than
// re-selecting it, so the retry lands on coder-w1.
func TestRouteStepValidatorRejectionExcludesWorkerAndRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workerclient.ExecuteResponse{Success: true, Output: "a response"})
	}))
	defer server.Close()

	store := newFakeStore()
	reg := registry.New()
	trk := tracker.New()
	hm := health.New(trk)
	q := queue.New(10)
	wc := workerclient.New(0)
	rv := &recordingValidator{rejectFor: map[string]bool{"coder-w2": true}}
	s := New(Config{MaxRetries: 2}, testLogger(t), reg, trk, hm, q, rv, wc, nil, store, nil, nil)

	// Give coder-w2 a track record that scores well above the tracker's
	// default 50 for an unseen worker, so pickTop selects it first.
	quality := 9.0
	trk.LogResult("coder-w2", string(domain.CapabilityCoding), true, 0.1, 10, 0.01, &quality)

	host, port := splitHostPort(t, server.URL)
	reg.Register(domain.Worker{Name: "coder-w1", Host: host, Port: port, Capability: domain.CapabilityCoding})
	reg.Register(domain.Worker{Name: "coder-w2", Host: host, Port: port, Capability: domain.CapabilityCoding})
	hm.RecordHeartbeat("coder-w1", domain.WorkerIdle)
	hm.RecordHeartbeat("coder-w2", domain.WorkerIdle)

	task := &domain.Task{ID: 6, TaskType: domain.CapabilityCoding, Description: "write a function"}
	result := s.RouteStep(context.Background(), task, "")

	require.Equal(t, OutcomeCompleted, result.Outcome)
	require.Equal(t, "coder-w1", result.WorkerName)
	require.Equal(t, []string{"coder-w2", "coder-w1"}, rv.calls)
}

type fakeBuiltin struct {
	answer string
	ok     bool
}

func (f fakeBuiltin) Respond(ctx context.Context, task domain.Task, contextStr string) (string, bool) {
	return f.answer, f.ok
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return host, port
}
