package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		tx      core.Transaction
		wantErr error
	}{
		{
			name: "zero amount",
			tx: core.Transaction{
				UserID: "user-1", CategoryID: "cat-food",
				Amount: core.Money{Cents: 0}, Date: day(2025, 1, 10), Type: core.TypeExpense,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			tx: core.Transaction{
				UserID: "user-1", CategoryID: "cat-food",
				Amount: core.Money{Cents: -100}, Date: day(2025, 1, 10), Type: core.TypeExpense,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "missing date",
			tx: core.Transaction{
				UserID: "user-1", CategoryID: "cat-food",
				Amount: core.Money{Cents: 100}, Type: core.TypeExpense,
			},
			wantErr: core.ErrMissingDate,
		},
		{
			name: "missing category",
			tx: core.Transaction{
				UserID: "user-1",
				Amount: core.Money{Cents: 100}, Date: day(2025, 1, 10), Type: core.TypeExpense,
			},
			wantErr: core.ErrMissingCategory,
		},
		{
			name: "unknown category",
			tx: core.Transaction{
				UserID: "user-1", CategoryID: "cat-nope",
				Amount: core.Money{Cents: 100}, Date: day(2025, 1, 10), Type: core.TypeExpense,
			},
			wantErr: core.ErrMissingCategory,
		},
		{
			name: "bad type",
			tx: core.Transaction{
				UserID: "user-1", CategoryID: "cat-food",
				Amount: core.Money{Cents: 100}, Date: day(2025, 1, 10), Type: "transfer",
			},
			wantErr: core.ErrInvalidTxType,
		},
		{
			name: "missing user",
			tx: core.Transaction{
				CategoryID: "cat-food",
				Amount:     core.Money{Cents: 100}, Date: day(2025, 1, 10), Type: core.TypeExpense,
			},
			wantErr: core.ErrMissingUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.txs.Create(ctx, tt.tx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateTransactionPatchSemantics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := env.createExpense(t, "cat-food", 8000, day(2025, 1, 10))

	// Empty patch changes nothing.
	same, err := env.txs.Update(ctx, tx.ID, TransactionPatch{})
	require.NoError(t, err)
	assert.Equal(t, tx.Amount, same.Amount)
	assert.Equal(t, tx.CategoryID, same.CategoryID)

	// A present empty description clears the field.
	empty := ""
	cleared, err := env.txs.Update(ctx, tx.ID, TransactionPatch{Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, "", cleared.Description)

	// Invalid patched values are rejected before anything is written.
	bad := core.Money{Cents: -1}
	_, err = env.txs.Update(ctx, tx.ID, TransactionPatch{Amount: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	unchanged, err := env.txs.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), unchanged.Amount.Cents)
}

func TestUpdateTransactionNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.txs.Update(context.Background(), "missing", TransactionPatch{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.txs.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBudgetValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.budgets.Create(ctx, core.Budget{
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: day(2025, 1, 31), EndDate: day(2025, 1, 1)},
	})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	_, err = env.budgets.Create(ctx, core.Budget{
		UserID:     "user-1",
		CategoryID: "cat-nope",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: day(2025, 1, 1), EndDate: day(2025, 1, 31)},
	})
	assert.ErrorIs(t, err, core.ErrMissingCategory)
}

func TestBudgetPatchIgnoresSpent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	budget := env.createBudget(t, "cat-food", 50000, day(2025, 1, 1), day(2025, 1, 31))
	env.createExpense(t, "cat-food", 8000, day(2025, 1, 10))

	newAmount := core.Money{Cents: 70000}
	updated, err := env.budgets.Update(ctx, budget.ID, BudgetPatch{Amount: &newAmount})
	require.NoError(t, err)

	assert.Equal(t, int64(70000), updated.Amount.Cents)
	assert.Equal(t, int64(8000), env.spentCents(t, budget.ID))
}

func TestBudgetDeleteLeavesTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	budget := env.createBudget(t, "cat-food", 50000, day(2025, 1, 1), day(2025, 1, 31))
	tx := env.createExpense(t, "cat-food", 8000, day(2025, 1, 10))

	require.NoError(t, env.budgets.Delete(ctx, budget.ID))

	got, err := env.txs.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), got.Amount.Cents)

	// With the budget gone, further transaction writes are plain no-ops for
	// the reconciler.
	_, err = env.txs.Delete(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), env.reconciler.Metrics().Failures)
}
