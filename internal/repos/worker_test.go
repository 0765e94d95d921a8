package repos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/repos/testutil"
)

func TestWorkerRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewWorkerRepo(db, testutil.Logger(t))

	w := &domain.Worker{
		Name:       "coder-1",
		Host:       "127.0.0.1",
		Port:       9001,
		Capability: domain.CapabilityCoding,
		Status:     domain.WorkerIdle,
	}
	require.NoError(t, repo.Upsert(ctx, tx, w))

	got, err := repo.GetByName(ctx, tx, "coder-1")
	require.NoError(t, err)
	require.Equal(t, "coder-1", got.Name)
	require.Equal(t, domain.CapabilityCoding, got.Capability)

	w.Status = domain.WorkerBusy
	require.NoError(t, repo.Upsert(ctx, tx, w))
	got, err = repo.GetByName(ctx, tx, "coder-1")
	require.NoError(t, err)
	require.Equal(t, domain.WorkerBusy, got.Status)

	require.NoError(t, repo.Upsert(ctx, tx, &domain.Worker{
		Name:       "doc-1",
		Capability: domain.CapabilityDocumentation,
		Status:     domain.WorkerIdle,
	}))

	all, err := repo.List(ctx, tx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, repo.UpdateStats(ctx, tx, "coder-1", 10, 8, 2, 1.5, 0.02))
	got, err = repo.GetByName(ctx, tx, "coder-1")
	require.NoError(t, err)
	require.Equal(t, 10, got.TotalTasks)
	require.Equal(t, 8, got.SuccessfulTasks)
	require.Equal(t, 2, got.FailedTasks)
	require.InDelta(t, 1.5, got.AvgExecutionTime, 0.0001)
	require.InDelta(t, 0.02, got.CostPerTask, 0.0001)

	_, err = repo.GetByName(ctx, tx, "nope")
	require.Error(t, err)
}
