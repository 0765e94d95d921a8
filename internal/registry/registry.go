// Package registry maintains the live view of registered workers: identity,
// capability, load, hardware telemetry, and heartbeat age (spec component
// C5). Shape is generalized from the teacher's jobs/runtime.Registry
// ("job_type -> handler" dispatch table) to "worker name -> live state".
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/fleetctl/masterctl/internal/domain"
)

// DefaultFreshnessWindow is the heartbeat-age cutoff beyond which a worker is
// excluded from selection (spec §3: "no heartbeat for > 30s").
const DefaultFreshnessWindow = 30 * time.Second

// Registry holds one domain.Worker per name behind a RWMutex, so ranking
// reads never block a heartbeat write for long, and heartbeat writes never
// block each other's readers.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*domain.Worker

	idleSignal chan struct{}
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		workers:    make(map[string]*domain.Worker),
		idleSignal: make(chan struct{}, 1),
	}
}

// IdleSignal fires (non-blocking, coalesced) whenever a worker transitions
// to idle, so router.Supervisor's drain loop knows to retry queued work.
func (r *Registry) IdleSignal() <-chan struct{} { return r.idleSignal }

func (r *Registry) notifyIdle() {
	select {
	case r.idleSignal <- struct{}{}:
	default:
	}
}

// Register is idempotent by name: a repeat registration updates the
// existing row in place rather than creating a duplicate.
func (r *Registry) Register(w domain.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.workers[w.Name]; ok {
		existing.Host = w.Host
		existing.Port = w.Port
		existing.Capability = w.Capability
		existing.LastHeartbeat = now
		existing.UpdatedAt = now
		if existing.Status == "" {
			existing.Status = domain.WorkerIdle
		}
		return
	}
	w.Status = domain.WorkerIdle
	w.LastHeartbeat = now
	w.CreatedAt = now
	w.UpdatedAt = now
	r.workers[w.Name] = &w
}

// Heartbeat updates hardware telemetry and liveness for an already
// registered worker. Unknown workers are silently ignored (a worker that
// heartbeats before registering is a transport race, not a registry error).
func (r *Registry) Heartbeat(name string, status domain.WorkerStatus, cpu, memory, temperature float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[name]
	if !ok {
		return
	}
	wasBusy := w.Status == domain.WorkerBusy
	w.Status = status
	w.LastHeartbeat = time.Now()
	w.CPUPercent = cpu
	w.MemoryPercent = memory
	w.TemperatureC = temperature
	w.UpdatedAt = time.Now()

	if wasBusy && status == domain.WorkerIdle {
		r.notifyIdle()
	}
}

// MarkBusy flips a worker to busy, e.g. right before dispatch.
func (r *Registry) MarkBusy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[name]; ok {
		w.Status = domain.WorkerBusy
		w.UpdatedAt = time.Now()
	}
}

// RecordOutcome updates rolling counters after a dispatch completes and
// resets the worker to idle regardless of outcome (spec §4.5).
func (r *Registry) RecordOutcome(name string, success bool, durationSeconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[name]
	if !ok {
		return
	}
	w.TotalTasks++
	if success {
		w.SuccessfulTasks++
	} else {
		w.FailedTasks++
	}
	// Running mean, matching the python original's incremental average.
	n := float64(w.TotalTasks)
	w.AvgExecutionTime += (durationSeconds - w.AvgExecutionTime) / n

	w.Status = domain.WorkerIdle
	w.UpdatedAt = time.Now()
	r.notifyIdle()
}

// Get returns a copy of one worker's current state.
func (r *Registry) Get(name string) (domain.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	if !ok {
		return domain.Worker{}, false
	}
	return *w, true
}

// Query returns live workers (heartbeat age < maxAge) matching capability,
// ordered idle-before-busy-before-other, then cpu ascending, then memory
// ascending, per spec §4.5. The snapshot is copied under the read lock so
// ranking (tracker.Score) never holds the registry's lock.
func (r *Registry) Query(capability string, maxAge time.Duration) []domain.Worker {
	if maxAge <= 0 {
		maxAge = DefaultFreshnessWindow
	}
	now := time.Now()

	r.mu.RLock()
	snapshot := make([]domain.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if w.HeartbeatAge(now) >= maxAge {
			continue
		}
		if !w.MatchesCapability(capability) {
			continue
		}
		snapshot = append(snapshot, *w)
	}
	r.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		oi, oj := statusOrder(snapshot[i].Status), statusOrder(snapshot[j].Status)
		if oi != oj {
			return oi < oj
		}
		if snapshot[i].CPUPercent != snapshot[j].CPUPercent {
			return snapshot[i].CPUPercent < snapshot[j].CPUPercent
		}
		return snapshot[i].MemoryPercent < snapshot[j].MemoryPercent
	})
	return snapshot
}

func statusOrder(s domain.WorkerStatus) int {
	switch s {
	case domain.WorkerIdle:
		return 0
	case domain.WorkerBusy:
		return 1
	default:
		return 2
	}
}

// All returns a copy of every known worker, for /stats reporting.
func (r *Registry) All() []domain.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, *w)
	}
	return out
}
