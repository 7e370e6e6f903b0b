// Package services orchestrates the storage layer, the reconciliation engine
// and the repair queue behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// RepairPublisher enqueues a full-recompute request for a budget whose spent
// total may have drifted. Implemented by the AMQP client; nil disables
// publishing (failures are still logged and counted).
type RepairPublisher interface {
	PublishBudgetRepair(ctx context.Context, budgetID, reason string) error
}

// ReconcilerMetrics counts reconciliation outcomes.
type ReconcilerMetrics struct {
	Adjustments int64
	Recomputes  int64
	Failures    int64
}

// Reconciler keeps budget spent totals in agreement with the expense
// transactions that match them. Incremental adjustments ride on atomic
// in-place increments; full recomputes rebuild spent from scratch and heal
// any drift. A failed adjustment never rolls back the transaction write that
// triggered it: the transaction is the source of truth, spent is a
// repairable cache.
type Reconciler struct {
	store   *storage.Repository
	repairs RepairPublisher

	adjustments atomic.Int64
	recomputes  atomic.Int64
	failures    atomic.Int64
}

func NewReconciler(store *storage.Repository, repairs RepairPublisher) *Reconciler {
	return &Reconciler{store: store, repairs: repairs}
}

// Metrics returns a snapshot of reconciliation counters.
func (r *Reconciler) Metrics() ReconcilerMetrics {
	return ReconcilerMetrics{
		Adjustments: r.adjustments.Load(),
		Recomputes:  r.recomputes.Load(),
		Failures:    r.failures.Load(),
	}
}

// findCoveringBudget locates the single budget matching (user, category,
// date). No match is a normal no-op, not an error: transactions may exist
// with no covering budget. More than one match means the overlap invariant
// was violated; adjusting any of them could double-count, so the engine
// refuses.
func (r *Reconciler) findCoveringBudget(ctx context.Context, userID, categoryID string, day core.Date) (*core.Budget, error) {
	budgets, err := r.store.FindCoveringBudgets(ctx, userID, categoryID, day)
	if err != nil {
		return nil, err
	}
	switch len(budgets) {
	case 0:
		return nil, nil
	case 1:
		return &budgets[0], nil
	default:
		ids := make([]string, len(budgets))
		for i, b := range budgets {
			ids[i] = b.ID
		}
		slog.ErrorContext(ctx, "Integrity violation: multiple budgets cover one transaction",
			"user_id", userID,
			"category_id", categoryID,
			"date", day.String(),
			"budget_ids", ids)
		return nil, fmt.Errorf("%w: user=%s category=%s date=%s", core.ErrAmbiguousBudget, userID, categoryID, day)
	}
}

// TransactionCreated credits the covering budget with the new expense.
func (r *Reconciler) TransactionCreated(ctx context.Context, tx core.Transaction) {
	if tx.Type != core.TypeExpense {
		return
	}
	r.adjust(ctx, tx, tx.Amount.Cents, "increment")
}

// TransactionDeleted reverses the deleted expense from its covering budget.
func (r *Reconciler) TransactionDeleted(ctx context.Context, tx core.Transaction) {
	if tx.Type != core.TypeExpense {
		return
	}
	r.adjust(ctx, tx, -tx.Amount.Cents, "decrement")
}

// TransactionUpdated treats an update as remove-then-reapply: the original
// transaction's effect is reversed and the new one's applied. When both
// versions resolve to the same budget, the two steps collapse into a single
// delta so the budget is only touched once.
func (r *Reconciler) TransactionUpdated(ctx context.Context, before, after core.Transaction) {
	var oldBudget, newBudget *core.Budget

	if before.Type == core.TypeExpense {
		b, err := r.findCoveringBudget(ctx, before.UserID, before.CategoryID, before.Date)
		if err != nil {
			r.recordFailure(ctx, budgetIDOf(b), before.ID, "decrement", err)
			return
		}
		oldBudget = b
	}
	if after.Type == core.TypeExpense {
		b, err := r.findCoveringBudget(ctx, after.UserID, after.CategoryID, after.Date)
		if err != nil {
			r.recordFailure(ctx, budgetIDOf(b), after.ID, "increment", err)
			return
		}
		newBudget = b
	}

	if oldBudget != nil && newBudget != nil && oldBudget.ID == newBudget.ID {
		delta := after.Amount.Cents - before.Amount.Cents
		if delta == 0 {
			return
		}
		r.applyDelta(ctx, oldBudget.ID, after.ID, delta, "increment")
		return
	}

	if oldBudget != nil {
		r.applyDelta(ctx, oldBudget.ID, before.ID, -before.Amount.Cents, "decrement")
	}
	if newBudget != nil {
		r.applyDelta(ctx, newBudget.ID, after.ID, after.Amount.Cents, "increment")
	}
}

// Recompute rebuilds one budget's spent total from its matching
// transactions. Idempotent; this is the repair path for any drift left by a
// failed incremental adjustment.
func (r *Reconciler) Recompute(ctx context.Context, budgetID string) (core.Money, error) {
	spent, err := r.store.RecomputeSpent(ctx, budgetID)
	if err != nil {
		if err != core.ErrNotFound {
			r.failures.Add(1)
		}
		return core.Money{}, err
	}
	r.recomputes.Add(1)
	slog.InfoContext(ctx, "Budget spent recomputed", "budget_id", budgetID, "spent_cents", spent)
	return core.Money{Cents: spent}, nil
}

func (r *Reconciler) adjust(ctx context.Context, tx core.Transaction, deltaCents int64, op string) {
	budget, err := r.findCoveringBudget(ctx, tx.UserID, tx.CategoryID, tx.Date)
	if err != nil {
		r.recordFailure(ctx, "", tx.ID, op, err)
		return
	}
	if budget == nil {
		slog.DebugContext(ctx, "No covering budget for transaction",
			"transaction_id", tx.ID,
			"category_id", tx.CategoryID,
			"date", tx.Date.String())
		return
	}
	r.applyDelta(ctx, budget.ID, tx.ID, deltaCents, op)
}

func (r *Reconciler) applyDelta(ctx context.Context, budgetID, txID string, deltaCents int64, op string) {
	if err := r.store.AddSpent(ctx, budgetID, deltaCents); err != nil {
		r.recordFailure(ctx, budgetID, txID, op, err)
		return
	}
	r.adjustments.Add(1)

	// A negative spent total means the store drifted at some earlier point.
	// Surface it and queue a repair instead of clamping.
	if deltaCents < 0 {
		if b, err := r.store.GetBudget(ctx, budgetID); err == nil && b.Spent.Cents < 0 {
			r.recordFailure(ctx, budgetID, txID, op,
				fmt.Errorf("budget spent went negative (%d cents)", b.Spent.Cents))
		}
	}
}

// recordFailure logs the reconciliation failure, bumps the failure counter
// and, when the budget is known, asks the repair worker for a full
// recompute. The primary write has already committed; nothing is rolled
// back here.
func (r *Reconciler) recordFailure(ctx context.Context, budgetID, txID, op string, cause error) {
	r.failures.Add(1)
	rerr := &core.ReconciliationError{
		BudgetID:      budgetID,
		TransactionID: txID,
		Op:            op,
		Err:           cause,
	}
	slog.ErrorContext(ctx, "Reconciliation failed; budget spent may have drifted",
		"budget_id", budgetID,
		"transaction_id", txID,
		"op", op,
		"error", rerr)

	if r.repairs == nil || budgetID == "" {
		return
	}
	if err := r.repairs.PublishBudgetRepair(ctx, budgetID, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to publish repair message",
			"budget_id", budgetID, "error", err)
	}
}

func budgetIDOf(b *core.Budget) string {
	if b == nil {
		return ""
	}
	return b.ID
}
