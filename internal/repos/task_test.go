package repos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/repos/testutil"
)

func TestTaskRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewTaskRepo(db, testutil.Logger(t))

	convID := "conv-1"
	first := &domain.Task{ConversationID: convID, Description: "write a function", TaskType: domain.CapabilityCoding, Status: domain.TaskPending}
	require.NoError(t, repo.Create(ctx, tx, first))
	require.NotZero(t, first.ID)

	second := &domain.Task{ConversationID: convID, Description: "document it", TaskType: domain.CapabilityDocumentation, Status: domain.TaskPending}
	require.NoError(t, repo.Create(ctx, tx, second))

	require.NoError(t, repo.UpdateStatus(ctx, tx, first.ID, domain.TaskCompleted))
	got, err := repo.GetByID(ctx, tx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskCompleted, got.Status)

	list, err := repo.ListByConversation(ctx, tx, convID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// newest first
	require.Equal(t, second.ID, list[0].ID)

	_, err = repo.GetByID(ctx, tx, 999999)
	require.Error(t, err)
}
