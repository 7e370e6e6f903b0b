package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(year, month, day int) core.Date {
	return core.NewDate(year, month, day)
}

func expense(id, userID, categoryID string, cents int64, day core.Date) core.Transaction {
	return core.Transaction{
		ID:         id,
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     core.Money{Cents: cents},
		Date:       day,
		Type:       core.TypeExpense,
	}
}

func TestTransactionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := expense("tx-1", "user-1", "cat-food", 12050, date(2025, 1, 10))
	tx.Description = "groceries"
	require.NoError(t, repo.CreateTransaction(ctx, tx))

	got, err := repo.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12050), got.Amount.Cents)
	assert.Equal(t, "groceries", got.Description)
	assert.Equal(t, "2025-01-10", got.Date.String())
	assert.Equal(t, core.TypeExpense, got.Type)
	assert.False(t, got.CreatedAt.IsZero())

	got.Amount.Cents = 20000
	require.NoError(t, repo.UpdateTransaction(ctx, got))
	got, err = repo.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), got.Amount.Cents)

	require.NoError(t, repo.DeleteTransaction(ctx, "tx-1"))
	_, err = repo.GetTransaction(ctx, "tx-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = repo.UpdateTransaction(ctx, expense("missing", "user-1", "cat-food", 100, date(2025, 1, 1)))
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = repo.DeleteTransaction(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListTransactionsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-1", "user-1", "cat-food", 1000, date(2025, 1, 5))))
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-2", "user-1", "cat-transport", 2000, date(2025, 1, 20))))

	salary := expense("tx-3", "user-1", "cat-salary", 500000, date(2025, 1, 25))
	salary.Type = core.TypeIncome
	require.NoError(t, repo.CreateTransaction(ctx, salary))

	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-other", "user-2", "cat-food", 999, date(2025, 1, 5))))

	all, err := repo.ListTransactions(ctx, "user-1", TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "tx-3", all[0].ID)

	food, err := repo.ListTransactions(ctx, "user-1", TransactionFilter{CategoryID: "cat-food"})
	require.NoError(t, err)
	require.Len(t, food, 1)
	assert.Equal(t, "tx-1", food[0].ID)
	assert.Equal(t, "Food", food[0].CategoryName)

	expenses, err := repo.ListTransactions(ctx, "user-1", TransactionFilter{Type: core.TypeExpense})
	require.NoError(t, err)
	assert.Len(t, expenses, 2)

	window, err := repo.ListTransactions(ctx, "user-1", TransactionFilter{
		StartDate: date(2025, 1, 10),
		EndDate:   date(2025, 1, 22),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "tx-2", window[0].ID)
}

func TestCreateBudgetRejectsOverlap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		Type:       core.TypeExpense,
	}
	require.NoError(t, repo.CreateBudget(ctx, base))

	overlapping := base
	overlapping.ID = "b-2"
	overlapping.Period = core.Period{StartDate: date(2025, 1, 20), EndDate: date(2025, 2, 5)}
	assert.ErrorIs(t, repo.CreateBudget(ctx, overlapping), core.ErrBudgetOverlap)

	// Sharing a boundary day still overlaps: periods are inclusive.
	boundary := base
	boundary.ID = "b-3"
	boundary.Period = core.Period{StartDate: date(2025, 1, 31), EndDate: date(2025, 2, 28)}
	assert.ErrorIs(t, repo.CreateBudget(ctx, boundary), core.ErrBudgetOverlap)

	adjacent := base
	adjacent.ID = "b-4"
	adjacent.Period = core.Period{StartDate: date(2025, 2, 1), EndDate: date(2025, 2, 28)}
	assert.NoError(t, repo.CreateBudget(ctx, adjacent))

	otherCategory := base
	otherCategory.ID = "b-5"
	otherCategory.CategoryID = "cat-transport"
	assert.NoError(t, repo.CreateBudget(ctx, otherCategory))

	otherUser := base
	otherUser.ID = "b-6"
	otherUser.UserID = "user-2"
	assert.NoError(t, repo.CreateBudget(ctx, otherUser))
}

func TestUpdateBudgetRejectsOverlap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	jan := core.Budget{
		ID:         "b-jan",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		Type:       core.TypeExpense,
	}
	feb := jan
	feb.ID = "b-feb"
	feb.Period = core.Period{StartDate: date(2025, 2, 1), EndDate: date(2025, 2, 28)}
	require.NoError(t, repo.CreateBudget(ctx, jan))
	require.NoError(t, repo.CreateBudget(ctx, feb))

	// Stretching January into February collides with the other budget.
	jan.Period.EndDate = date(2025, 2, 10)
	assert.ErrorIs(t, repo.UpdateBudget(ctx, jan), core.ErrBudgetOverlap)

	// A budget never conflicts with itself.
	jan.Period.EndDate = date(2025, 1, 25)
	assert.NoError(t, repo.UpdateBudget(ctx, jan))
}

func TestUpdateBudgetKeepsConcurrentSpentIncrements(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBudget(ctx, core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		Type:       core.TypeExpense,
	}))

	// Snapshot read, then an increment lands before the update is written.
	snapshot, err := repo.GetBudget(ctx, "b-1")
	require.NoError(t, err)
	require.NoError(t, repo.AddSpent(ctx, "b-1", 10000))

	snapshot.Amount.Cents = 70000
	require.NoError(t, repo.UpdateBudget(ctx, snapshot))

	b, err := repo.GetBudget(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.Spent.Cents)
	assert.Equal(t, int64(70000), b.Amount.Cents)
}

func TestCreateBudgetSeedsSpentFromExistingTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-1", "user-1", "cat-food", 12000, date(2025, 1, 10))))
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-2", "user-1", "cat-food", 5000, date(2025, 1, 20))))
	// Outside the period, wrong category, wrong user and income rows do not count.
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-3", "user-1", "cat-food", 7000, date(2025, 2, 2))))
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-4", "user-1", "cat-transport", 3000, date(2025, 1, 15))))
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-5", "user-2", "cat-food", 9000, date(2025, 1, 15))))
	salary := expense("tx-6", "user-1", "cat-food", 100000, date(2025, 1, 12))
	salary.Type = core.TypeIncome
	require.NoError(t, repo.CreateTransaction(ctx, salary))

	require.NoError(t, repo.CreateBudget(ctx, core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		Type:       core.TypeExpense,
	}))

	b, err := repo.GetBudget(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17000), b.Spent.Cents)
}

func TestAddSpentAndRecompute(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBudget(ctx, core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		Type:       core.TypeExpense,
	}))

	require.NoError(t, repo.AddSpent(ctx, "b-1", 12000))
	require.NoError(t, repo.AddSpent(ctx, "b-1", -2000))

	b, err := repo.GetBudget(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.Spent.Cents)

	assert.ErrorIs(t, repo.AddSpent(ctx, "missing", 100), core.ErrNotFound)

	// Recompute rebuilds from the transactions table, discarding drift.
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-1", "user-1", "cat-food", 4500, date(2025, 1, 8))))
	spent, err := repo.RecomputeSpent(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4500), spent)

	again, err := repo.RecomputeSpent(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, spent, again)

	_, err = repo.RecomputeSpent(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFindCoveringBudgets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBudget(ctx, core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		Type:       core.TypeExpense,
	}))

	covering, err := repo.FindCoveringBudgets(ctx, "user-1", "cat-food", date(2025, 1, 31))
	require.NoError(t, err)
	require.Len(t, covering, 1)
	assert.Equal(t, "b-1", covering[0].ID)

	none, err := repo.FindCoveringBudgets(ctx, "user-1", "cat-food", date(2025, 2, 1))
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = repo.FindCoveringBudgets(ctx, "user-2", "cat-food", date(2025, 1, 15))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListCategoriesIncludesDefaultsAndOwn(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	categories, err := repo.ListCategories(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, categories)
	for _, c := range categories {
		assert.Empty(t, c.UserID)
	}

	food, err := repo.GetCategory(ctx, "cat-food")
	require.NoError(t, err)
	assert.Equal(t, "Food", food.Name)
	assert.Equal(t, core.TypeExpense, food.Type)

	_, err = repo.GetCategory(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGoalLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	goal := core.Goal{
		ID:           "g-1",
		UserID:       "user-1",
		Name:         "Emergency fund",
		TargetAmount: core.Money{Cents: 1000000},
		Deadline:     date(2025, 12, 31),
		Status:       "active",
	}
	require.NoError(t, repo.CreateGoal(ctx, goal))

	got, err := repo.GetGoal(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, "Emergency fund", got.Name)
	assert.Equal(t, int64(1000000), got.TargetAmount.Cents)

	goals, err := repo.ListGoals(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	require.NoError(t, repo.DeleteGoal(ctx, "g-1"))
	_, err = repo.GetGoal(ctx, "g-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDashboardQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	january := core.Period{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}

	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-1", "user-1", "cat-food", 10000, date(2025, 1, 5))))
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-2", "user-1", "cat-food", 5000, date(2025, 1, 25))))
	salary := expense("tx-3", "user-1", "cat-salary", 300000, date(2025, 1, 27))
	salary.Type = core.TypeIncome
	require.NoError(t, repo.CreateTransaction(ctx, salary))
	require.NoError(t, repo.CreateTransaction(ctx, expense("tx-4", "user-1", "cat-food", 7000, date(2025, 2, 3))))

	expenseTotal, err := repo.SumTransactionsByType(ctx, "user-1", core.TypeExpense, january)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), expenseTotal)

	incomeTotal, err := repo.SumTransactionsByType(ctx, "user-1", core.TypeIncome, january)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), incomeTotal)

	// A budget counts for every month its period touches.
	require.NoError(t, repo.CreateBudget(ctx, core.Budget{
		ID:         "b-1",
		UserID:     "user-1",
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 50000},
		Period:     core.Period{StartDate: date(2025, 1, 15), EndDate: date(2025, 2, 15)},
		Type:       core.TypeExpense,
	}))
	count, err := repo.CountBudgetsInPeriod(ctx, "user-1", january)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountBudgetsInPeriod(ctx, "user-1", core.Period{StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 31)})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.CreateGoal(ctx, core.Goal{
		ID:           "g-1",
		UserID:       "user-1",
		Name:         "Trip",
		TargetAmount: core.Money{Cents: 200000},
		Deadline:     date(2025, 6, 30),
		Status:       "active",
	}))
	goals, err := repo.CountActiveGoals(ctx, "user-1", date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, goals)

	goals, err = repo.CountActiveGoals(ctx, "user-1", date(2025, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, goals)
}
