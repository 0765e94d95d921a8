package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
)

func TestQueuePriorityOrder(t *testing.T) {
	q := New(10)

	_, err := q.Enqueue(1, domain.CapabilityCoding, domain.PriorityLow, "", "", 0)
	require.NoError(t, err)
	_, err = q.Enqueue(2, domain.CapabilityCoding, domain.PriorityCritical, "", "", 0)
	require.NoError(t, err)
	_, err = q.Enqueue(3, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	require.NoError(t, err)

	ctx := context.Background()
	first, ok := q.Dequeue(ctx)
	require.True(t, ok)
	require.Equal(t, int64(2), first.TaskID)

	second, ok := q.Dequeue(ctx)
	require.True(t, ok)
	require.Equal(t, int64(3), second.TaskID)

	third, ok := q.Dequeue(ctx)
	require.True(t, ok)
	require.Equal(t, int64(1), third.TaskID)
}

func TestQueueFIFOWithinSamePriority(t *testing.T) {
	q := New(10)
	id1, _ := q.Enqueue(1, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	time.Sleep(time.Millisecond)
	id2, _ := q.Enqueue(2, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	require.NotEqual(t, id1, id2)

	first, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	require.Equal(t, int64(1), first.TaskID)
}

func TestQueueFullRejectsEnqueue(t *testing.T) {
	q := New(1)
	_, err := q.Enqueue(1, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	require.NoError(t, err)
	_, err = q.Enqueue(2, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueDequeueBlocksUntilCancelled(t *testing.T) {
	q := New(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := q.Dequeue(ctx)
	require.False(t, ok)
}

func TestQueueMarkCompleteRetriesThenGivesUp(t *testing.T) {
	q := New(10)
	id, err := q.Enqueue(1, domain.CapabilityCoding, domain.PriorityNormal, "", "", 2)
	require.NoError(t, err)

	it, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	require.Equal(t, id, it.ID)

	// First failure: retryable, re-enqueued.
	require.False(t, q.MarkComplete(it.ID, false))
	require.Equal(t, 1, q.Size())

	it2, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	require.Equal(t, 1, it2.RetryCount)

	// Second failure: retry count (1) is still below MaxRetries (2), retried again.
	require.False(t, q.MarkComplete(it2.ID, false))

	it3, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	require.Equal(t, 2, it3.RetryCount)

	// Third failure: retry count (2) has reached MaxRetries, gives up.
	require.True(t, q.MarkComplete(it3.ID, false))
	require.Equal(t, 0, q.Size())
}

func TestQueueCancelTaskPreventsFutureDequeue(t *testing.T) {
	q := New(10)
	_, err := q.Enqueue(42, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	require.NoError(t, err)

	removed := q.CancelTask(42)
	require.True(t, removed)
	require.Equal(t, 0, q.Size())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := q.Dequeue(ctx)
	require.False(t, ok, "a cancelled task must never be yielded by Dequeue")
}

func TestQueueCancelTaskLeavesOthersIntact(t *testing.T) {
	q := New(10)
	_, err := q.Enqueue(1, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	require.NoError(t, err)
	_, err = q.Enqueue(2, domain.CapabilityCoding, domain.PriorityCritical, "", "", 0)
	require.NoError(t, err)

	require.True(t, q.CancelTask(1))
	require.False(t, q.CancelTask(999), "cancelling an unknown task reports false")

	it, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	require.Equal(t, int64(2), it.TaskID)
	require.Equal(t, 0, q.Size())
}

func TestQueueStats(t *testing.T) {
	q := New(10)
	_, _ = q.Enqueue(1, domain.CapabilityCoding, domain.PriorityHigh, "", "", 0)
	_, _ = q.Enqueue(2, domain.CapabilityCoding, domain.PriorityHigh, "", "", 0)
	_, _ = q.Enqueue(3, domain.CapabilityCoding, domain.PriorityLow, "", "", 0)

	stats := q.Stats()
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.ByPriority[domain.PriorityHigh])
	require.Equal(t, 1, stats.ByPriority[domain.PriorityLow])
	require.GreaterOrEqual(t, stats.OldestTaskAge, time.Duration(0))
}

func TestQueueClear(t *testing.T) {
	q := New(10)
	_, _ = q.Enqueue(1, domain.CapabilityCoding, domain.PriorityNormal, "", "", 0)
	q.Clear()
	require.Equal(t, 0, q.Size())
}
