// Package queue implements the bounded priority queue workers fall back to
// when no live worker can take a task immediately, grounded on
// task_queue.py's SmartTaskQueue: a heap ordered by priority then
// insertion time, a condition variable for blocking dequeue, and
// retry-aware re-queueing on completion.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetctl/masterctl/internal/domain"
)

// DefaultMaxSize mirrors SmartTaskQueue's default max_size=1000.
const DefaultMaxSize = 1000

// DefaultMaxRetries mirrors Task's default max_retries=3.
const DefaultMaxRetries = 3

var ErrQueueFull = errors.New("queue: at capacity")

// Item is one queued unit of work: a task plus the step it's retrying, so
// RouteStep can resume exactly where it left off.
type Item struct {
	ID         string
	TaskID     int64
	Priority   domain.Priority
	Capability domain.Capability
	// WorkerHint binds this item to a specific worker name (step 5 of the
	// routing algorithm: "queued_for_<name>"); empty means any capable
	// worker may drain it.
	WorkerHint string
	Reason     string
	MaxRetries int
	RetryCount int
	EnqueuedAt time.Time

	index int // heap.Interface bookkeeping
}

type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority // lower value = more urgent
	}
	return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *itemHeap) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a bounded, priority-ordered, retry-aware work queue. Blocking
// Dequeue is implemented with sync.Cond rather than SmartTaskQueue's
// threading.Condition, generalized to accept a context so a caller can
// cancel a wait (Python's timeout=None loop has no cancellation path).
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   itemHeap
	byID    map[string]*Item
	maxSize int
}

func New(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	q := &Queue{
		items:   make(itemHeap, 0),
		byID:    make(map[string]*Item),
		maxSize: maxSize,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a task step at the given priority under a fresh item ID and
// fails with ErrQueueFull at capacity. The retry path is MarkComplete, which
// re-pushes an existing item without a capacity check, matching
// mark_complete's unconditional heappush on retry.
func (q *Queue) Enqueue(taskID int64, capability domain.Capability, priority domain.Priority, workerHint, reason string, maxRetries int) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.maxSize {
		return "", ErrQueueFull
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	it := &Item{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		Priority:   priority,
		Capability: capability,
		WorkerHint: workerHint,
		Reason:     reason,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
	}
	heap.Push(&q.items, it)
	q.byID[it.ID] = it
	q.cond.Signal()
	return it.ID, nil
}

// Dequeue blocks for the highest-priority item until one is available or
// ctx is cancelled. A background goroutine races the context's Done channel
// against the condvar wake, since sync.Cond has no native context support.
func (q *Queue) Dequeue(ctx context.Context) (*Item, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	it := heap.Pop(&q.items).(*Item)
	return it, true
}

// MarkComplete finalizes a dequeued item. On success (or exhausted
// retries) it is forgotten; on a retryable failure it is re-enqueued with
// an incremented retry count and a fresh timestamp, and MarkComplete
// reports false ("not truly complete, will retry"), mirroring
// mark_complete's return value.
func (q *Queue) MarkComplete(id string, success bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byID[id]
	if !ok {
		return true
	}

	if !success && it.RetryCount < it.MaxRetries {
		it.RetryCount++
		it.EnqueuedAt = time.Now()
		heap.Push(&q.items, it)
		q.cond.Signal()
		return false
	}

	delete(q.byID, id)
	return true
}

// CancelTask removes every queued item for taskID so a subsequent Dequeue
// can never yield it, satisfying the round-trip law
// "enqueue(t); cancel(t); dequeue()` does not yield t". Reports whether
// anything was removed.
func (q *Queue) CancelTask(taskID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := false
	remaining := q.items[:0]
	for _, it := range q.items {
		if it.TaskID == taskID {
			delete(q.byID, it.ID)
			removed = true
			continue
		}
		remaining = append(remaining, it)
	}
	for i, it := range remaining {
		it.index = i
	}
	q.items = remaining
	heap.Init(&q.items)
	return removed
}

// Stats mirrors get_queue_stats's shape.
type Stats struct {
	Total         int
	ByPriority    map[domain.Priority]int
	OldestTaskAge time.Duration
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	byPriority := map[domain.Priority]int{
		domain.PriorityCritical: 0,
		domain.PriorityHigh:     0,
		domain.PriorityNormal:   0,
		domain.PriorityLow:      0,
	}
	var oldest time.Duration
	for _, it := range q.items {
		byPriority[it.Priority]++
	}
	if len(q.items) > 0 {
		oldestAt := q.items[0].EnqueuedAt
		for _, it := range q.items {
			if it.EnqueuedAt.Before(oldestAt) {
				oldestAt = it.EnqueuedAt
			}
		}
		oldest = time.Since(oldestAt)
	}
	return Stats{Total: len(q.items), ByPriority: byPriority, OldestTaskAge: oldest}
}

// Size returns the current queue length.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue, e.g. on a leader demotion.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	q.byID = make(map[string]*Item)
}
