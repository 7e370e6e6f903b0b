package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

// SumTransactionsByType totals a user's transactions of one type within the
// period, inclusive.
func (r *Repository) SumTransactionsByType(ctx context.Context, userID string, txType core.TransactionType, period core.Period) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND transaction_type = ?
		  AND tx_date >= ? AND tx_date <= ?`,
		userID, string(txType), period.StartDate.String(), period.EndDate.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum %s transactions: %w", txType, err)
	}
	return total, nil
}

// CountBudgetsInPeriod counts a user's budgets whose period shares at least
// one day with the given period.
func (r *Repository) CountBudgetsInPeriod(ctx context.Context, userID string, period core.Period) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM budgets
		WHERE user_id = ? AND start_date <= ? AND end_date >= ?`,
		userID, period.EndDate.String(), period.StartDate.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count budgets in period: %w", err)
	}
	return count, nil
}

// CountActiveGoals counts a user's active goals whose deadline has not
// passed before the given day.
func (r *Repository) CountActiveGoals(ctx context.Context, userID string, from core.Date) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM goals
		WHERE user_id = ? AND status = 'active' AND deadline >= ?`,
		userID, from.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active goals: %w", err)
	}
	return count, nil
}
