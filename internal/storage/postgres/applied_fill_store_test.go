package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

func TestAppliedFillStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	agents := NewAgentStore(pool)
	store := NewAppliedFillStore(pool)
	ctx := context.Background()

	// applied_fills references agents.
	require.NoError(t, agents.Insert(ctx, &domain.Agent{
		ID:              "agent1",
		ExternalAddress: "addr1",
		Status:          domain.AgentStatusActive,
	}))

	t.Run("insert and get", func(t *testing.T) {
		fills := []*domain.AppliedFill{
			{FillID: "f2", AgentID: "agent1", ClosedPnl: -50, AppliedAt: 2000},
			{FillID: "f1", AgentID: "agent1", ClosedPnl: 100, AgentShare: 80, FirmShare: 20, AppliedAt: 1000},
		}
		for _, f := range fills {
			require.NoError(t, store.Insert(ctx, f))
		}

		got, err := store.GetByAgentID(ctx, "agent1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "f1", got[0].FillID, "ordered by applied_at")
		require.Equal(t, 80.0, got[0].AgentShare)
		require.Equal(t, 20.0, got[0].FirmShare)
	})

	t.Run("duplicate fill id", func(t *testing.T) {
		dup := &domain.AppliedFill{FillID: "f1", AgentID: "agent1", ClosedPnl: 5}
		err := store.Insert(ctx, dup)
		require.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("empty history", func(t *testing.T) {
		got, err := store.GetByAgentID(ctx, "ghost")
		require.NoError(t, err)
		require.Empty(t, got)
	})
}
