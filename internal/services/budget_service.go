package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// BudgetPatch carries a partial budget update with presence-based
// semantics. Spent is not patchable: it is derived state owned by the
// reconciliation engine.
type BudgetPatch struct {
	Amount     *core.Money
	StartDate  *core.Date
	EndDate    *core.Date
	CategoryID *string
}

// BudgetService runs the budget lifecycle: overlap-checked writes and
// spent seeding/repair through the reconciler.
type BudgetService struct {
	store      *storage.Repository
	reconciler *Reconciler
}

func NewBudgetService(store *storage.Repository, reconciler *Reconciler) *BudgetService {
	return &BudgetService{store: store, reconciler: reconciler}
}

// Create validates and persists a budget. The spent seed is computed from
// pre-existing matching expense transactions inside the same storage
// transaction as the overlap check and insert; any spent value the caller
// supplied is ignored.
func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = uuid.NewString()
	if b.Type == "" {
		b.Type = core.TypeExpense
	}
	b.Spent = core.Money{}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.checkCategory(ctx, b.CategoryID); err != nil {
		return core.Budget{}, err
	}

	if err := s.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}

	created, err := s.store.GetBudget(ctx, b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("read created budget: %w", err)
	}
	return created, nil
}

// Update applies a partial patch, re-running the overlap check against the
// other budgets of the same (user, category). When the period or category
// changed, the set of matching transactions changed with it and no cheap
// delta exists, so spent is rebuilt by full recompute.
func (s *BudgetService) Update(ctx context.Context, id string, patch BudgetPatch) (core.Budget, error) {
	before, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}

	after := before
	if patch.Amount != nil {
		after.Amount = *patch.Amount
	}
	if patch.StartDate != nil {
		after.Period.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		after.Period.EndDate = *patch.EndDate
	}
	if patch.CategoryID != nil {
		after.CategoryID = *patch.CategoryID
	}

	if err := after.Validate(); err != nil {
		return core.Budget{}, err
	}
	if patch.CategoryID != nil {
		if err := s.checkCategory(ctx, after.CategoryID); err != nil {
			return core.Budget{}, err
		}
	}

	if err := s.store.UpdateBudget(ctx, after); err != nil {
		return core.Budget{}, err
	}

	matchingChanged := after.CategoryID != before.CategoryID ||
		!after.Period.StartDate.Equal(before.Period.StartDate.Time) ||
		!after.Period.EndDate.Equal(before.Period.EndDate.Time)
	if matchingChanged {
		if _, err := s.reconciler.Recompute(ctx, after.ID); err != nil {
			// The budget row is committed; spent repair is queued, not rolled back.
			slog.ErrorContext(ctx, "Recompute after budget update failed",
				"budget_id", after.ID, "error", err)
		}
	}

	// Re-read rather than returning the merged snapshot: spent belongs to
	// the reconciliation engine and may have moved underneath the patch.
	updated, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("read updated budget: %w", err)
	}
	return updated, nil
}

// Delete removes a budget. Its transactions are untouched.
func (s *BudgetService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteBudget(ctx, id)
}

// Get fetches one budget.
func (s *BudgetService) Get(ctx context.Context, id string) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

// List returns the category-joined projection for a user, newest first.
func (s *BudgetService) List(ctx context.Context, userID string) ([]storage.BudgetWithCategory, error) {
	return s.store.ListBudgets(ctx, userID)
}

// Recompute is the on-demand repair operation: it rebuilds one budget's
// spent total and returns the healed value.
func (s *BudgetService) Recompute(ctx context.Context, id string) (core.Money, error) {
	return s.reconciler.Recompute(ctx, id)
}

func (s *BudgetService) checkCategory(ctx context.Context, categoryID string) error {
	_, err := s.store.GetCategory(ctx, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrMissingCategory
	}
	return err
}
