package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// CreateGoal inserts a savings goal.
func (r *Repository) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, name, target_cents, current_cents, deadline, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents, g.Deadline.String(), g.Status)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetGoal fetches one goal by id.
func (r *Repository) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_cents, current_cents, deadline, status, created_at
		FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %s: %w", id, err)
	}
	return g, nil
}

// DeleteGoal removes a goal.
func (r *Repository) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListGoals returns a user's goals newest first.
func (r *Repository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, target_cents, current_cents, deadline, status, created_at
		FROM goals WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g           core.Goal
		deadlineStr string
		createdAt   sql.NullString
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents,
		&deadlineStr, &g.Status, &createdAt)
	if err != nil {
		return core.Goal{}, err
	}
	if g.Deadline, err = core.ParseDate(deadlineStr); err != nil {
		return core.Goal{}, fmt.Errorf("parse stored deadline %q: %w", deadlineStr, err)
	}
	g.CreatedAt = scanTime(createdAt)
	return g, nil
}
