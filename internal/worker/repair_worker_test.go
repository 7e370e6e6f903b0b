package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newWorker(t *testing.T) (*RepairWorker, *storage.Repository) {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewRepairWorker(services.NewReconciler(repo, nil)), repo
}

func TestHandleRepairMessageHealsDrift(t *testing.T) {
	w, repo := newWorker(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBudget(ctx, core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period: core.Period{
			StartDate: core.NewDate(2025, 1, 1),
			EndDate:   core.NewDate(2025, 1, 31),
		},
		Type: core.TypeExpense,
	}))
	require.NoError(t, repo.CreateTransaction(ctx, core.Transaction{
		ID:         "tx-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 8000},
		Date:       core.NewDate(2025, 1, 10),
		Type:       core.TypeExpense,
	}))
	// Drift: the budget still carries its empty seed.
	require.NoError(t, repo.AddSpent(ctx, "b-1", 12345))

	msg := &amqp.BudgetRepairMessage{BudgetID: "b-1", Reason: "drift", Timestamp: time.Now()}
	require.NoError(t, w.HandleRepairMessage(ctx, msg))

	b, err := repo.GetBudget(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), b.Spent.Cents)

	// Redelivery converges on the same value.
	require.NoError(t, w.HandleRepairMessage(ctx, msg))
	b, err = repo.GetBudget(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), b.Spent.Cents)
}

func TestHandleRepairMessageForDeletedBudget(t *testing.T) {
	w, _ := newWorker(t)

	err := w.HandleRepairMessage(context.Background(), &amqp.BudgetRepairMessage{
		BudgetID:  "gone",
		Reason:    "drift",
		Timestamp: time.Now(),
	})
	assert.NoError(t, err)
}
