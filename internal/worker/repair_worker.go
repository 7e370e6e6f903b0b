// Package worker runs the background repair loop that heals budget spent
// drift reported by the reconciliation engine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

// RepairWorker consumes budget repair messages and runs full recomputes.
// Recompute is idempotent, so redelivered messages are harmless.
type RepairWorker struct {
	reconciler *services.Reconciler
}

func NewRepairWorker(reconciler *services.Reconciler) *RepairWorker {
	return &RepairWorker{reconciler: reconciler}
}

// HandleRepairMessage processes a single repair request.
func (w *RepairWorker) HandleRepairMessage(ctx context.Context, msg *amqp.BudgetRepairMessage) error {
	slog.InfoContext(ctx, "Processing budget repair",
		"budget_id", msg.BudgetID,
		"reason", msg.Reason,
		"queued_at", msg.Timestamp)

	spent, err := w.reconciler.Recompute(ctx, msg.BudgetID)
	if errors.Is(err, core.ErrNotFound) {
		// Budget deleted between failure and repair; nothing left to heal.
		slog.WarnContext(ctx, "Budget gone before repair could run", "budget_id", msg.BudgetID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("recompute budget %s: %w", msg.BudgetID, err)
	}

	slog.InfoContext(ctx, "Budget repair complete",
		"budget_id", msg.BudgetID,
		"spent_cents", spent.Cents)
	return nil
}
