package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// BudgetWithCategory is the category-joined projection served by the HTTP
// layer.
type BudgetWithCategory struct {
	core.Budget
	CategoryName string `json:"category_name"`
}

const budgetColumns = `id, user_id, category_id, amount_cents, spent_cents, start_date, end_date, transaction_type, created_at`

// CreateBudget inserts a budget after verifying no existing budget for the
// same (user, category) overlaps the period. The spent seed is computed from
// pre-existing matching expense transactions. Check, seed and insert run in
// one immediate transaction, so two concurrent creations cannot both pass
// the check and no transaction write can slip between seed and insert.
func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) error {
	return r.insertOrReplaceBudget(ctx, b, true)
}

// UpdateBudget rewrites an existing budget row with the same overlap
// discipline as CreateBudget, excluding the budget itself from the
// comparison set.
func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	return r.insertOrReplaceBudget(ctx, b, false)
}

func (r *Repository) insertOrReplaceBudget(ctx context.Context, b core.Budget, create bool) error {
	tx, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM budgets
		WHERE user_id = ? AND category_id = ? AND id <> ?
		  AND start_date <= ? AND end_date >= ?`,
		b.UserID, b.CategoryID, b.ID, b.Period.EndDate.String(), b.Period.StartDate.String(),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("check budget overlap: %w", err)
	}
	if overlapping > 0 {
		return core.ErrBudgetOverlap
	}

	if create {
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
			WHERE user_id = ? AND category_id = ? AND transaction_type = 'expense'
			  AND tx_date >= ? AND tx_date <= ?`,
			b.UserID, b.CategoryID, b.Period.StartDate.String(), b.Period.EndDate.String(),
		).Scan(&b.Spent.Cents)
		if err != nil {
			return fmt.Errorf("seed budget spent: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO budgets (id, user_id, category_id, amount_cents, spent_cents, start_date, end_date, transaction_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.UserID, b.CategoryID, b.Amount.Cents, b.Spent.Cents,
			b.Period.StartDate.String(), b.Period.EndDate.String(), string(b.Type))
		if err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
	} else {
		// spent_cents is deliberately absent: writing back a value read
		// earlier would erase any atomic increment that landed in between.
		// Spent only ever changes through AddSpent and RecomputeSpent.
		res, execErr := tx.ExecContext(ctx, `
			UPDATE budgets
			SET category_id = ?, amount_cents = ?, start_date = ?, end_date = ?, transaction_type = ?
			WHERE id = ?`,
			b.CategoryID, b.Amount.Cents,
			b.Period.StartDate.String(), b.Period.EndDate.String(), string(b.Type), b.ID)
		if execErr != nil {
			return fmt.Errorf("update budget %s: %w", b.ID, execErr)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit budget write: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"id", b.ID,
		"user_id", b.UserID,
		"category_id", b.CategoryID,
		"period_start", b.Period.StartDate.String(),
		"period_end", b.Period.EndDate.String(),
		"amount_cents", b.Amount.Cents,
		"created", create)
	return nil
}

// GetBudget fetches one budget by id.
func (r *Repository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}
	return b, nil
}

// DeleteBudget removes a budget. Transactions are untouched: they are
// matched implicitly, never owned.
func (r *Repository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// FindCoveringBudgets returns every budget for (user, category) whose period
// contains day. The overlap invariant should make the result at most one
// row; callers treat more as an integrity failure.
func (r *Repository) FindCoveringBudgets(ctx context.Context, userID, categoryID string, day core.Date) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND category_id = ? AND start_date <= ? AND end_date >= ?`,
		userID, categoryID, day.String(), day.String())
	if err != nil {
		return nil, fmt.Errorf("find covering budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddSpent applies a signed delta to a budget's spent total as a single
// in-place UPDATE. Concurrent deltas serialize inside SQLite instead of
// racing through read-modify-write cycles.
func (r *Repository) AddSpent(ctx context.Context, budgetID string, deltaCents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET spent_cents = spent_cents + ? WHERE id = ?`,
		deltaCents, budgetID)
	if err != nil {
		return fmt.Errorf("adjust budget spent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumMatchingExpenses totals the expense transactions a budget with the
// given coordinates would cover. Used to seed spent at budget creation.
func (r *Repository) SumMatchingExpenses(ctx context.Context, userID, categoryID string, period core.Period) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND category_id = ? AND transaction_type = 'expense'
		  AND tx_date >= ? AND tx_date <= ?`,
		userID, categoryID, period.StartDate.String(), period.EndDate.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum matching expenses: %w", err)
	}
	return total, nil
}

// RecomputeSpent rebuilds a budget's spent total from its matching
// transactions in one statement and returns the new value. Running it twice
// without intervening transaction changes yields the same result.
func (r *Repository) RecomputeSpent(ctx context.Context, budgetID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET spent_cents = (
			SELECT COALESCE(SUM(t.amount_cents), 0) FROM transactions t
			WHERE t.user_id = budgets.user_id
			  AND t.category_id = budgets.category_id
			  AND t.transaction_type = 'expense'
			  AND t.tx_date >= budgets.start_date
			  AND t.tx_date <= budgets.end_date
		)
		WHERE id = ?`, budgetID)
	if err != nil {
		return 0, fmt.Errorf("recompute budget spent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, core.ErrNotFound
	}

	var spent int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT spent_cents FROM budgets WHERE id = ?`, budgetID).Scan(&spent); err != nil {
		return 0, fmt.Errorf("read recomputed spent: %w", err)
	}
	return spent, nil
}

// ListBudgets returns a user's budgets newest first, joined with the
// category name.
func (r *Repository) ListBudgets(ctx context.Context, userID string) ([]BudgetWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.category_id, b.amount_cents, b.spent_cents,
		       b.start_date, b.end_date, b.transaction_type, b.created_at, COALESCE(c.name, '')
		FROM budgets b
		LEFT JOIN categories c ON c.id = b.category_id
		WHERE b.user_id = ?
		ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []BudgetWithCategory
	for rows.Next() {
		var (
			item      BudgetWithCategory
			startStr  string
			endStr    string
			typeStr   string
			createdAt sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.CategoryID, &item.Amount.Cents, &item.Spent.Cents,
			&startStr, &endStr, &typeStr, &createdAt, &item.CategoryName); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if item.Period.StartDate, err = core.ParseDate(startStr); err != nil {
			return nil, fmt.Errorf("parse stored start date %q: %w", startStr, err)
		}
		if item.Period.EndDate, err = core.ParseDate(endStr); err != nil {
			return nil, fmt.Errorf("parse stored end date %q: %w", endStr, err)
		}
		item.Type = core.TransactionType(typeStr)
		item.CreatedAt = scanTime(createdAt)
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListBudgetIDs returns every budget id, for whole-store repair sweeps.
func (r *Repository) ListBudgetIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM budgets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list budget ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budget id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b         core.Budget
		startStr  string
		endStr    string
		typeStr   string
		createdAt sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount.Cents, &b.Spent.Cents,
		&startStr, &endStr, &typeStr, &createdAt)
	if err != nil {
		return core.Budget{}, err
	}
	if b.Period.StartDate, err = core.ParseDate(startStr); err != nil {
		return core.Budget{}, fmt.Errorf("parse stored start date %q: %w", startStr, err)
	}
	if b.Period.EndDate, err = core.ParseDate(endStr); err != nil {
		return core.Budget{}, fmt.Errorf("parse stored end date %q: %w", endStr, err)
	}
	b.Type = core.TransactionType(typeStr)
	b.CreatedAt = scanTime(createdAt)
	return b, nil
}
