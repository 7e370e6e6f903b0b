package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// GetCategory fetches one category by id. Categories are reference data:
// this package never mutates them outside migrations.
func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var (
		c       core.Category
		typeStr string
		userID  sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, category_type, user_id FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &typeStr, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	c.Type = core.TransactionType(typeStr)
	c.UserID = userID.String
	return c, nil
}

// ListCategories returns the global default categories plus the user's own.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category_type, user_id FROM categories
		WHERE user_id IS NULL OR user_id = ?
		ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c       core.Category
			typeStr string
			owner   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &typeStr, &owner); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typeStr)
		c.UserID = owner.String
		out = append(out, c)
	}
	return out, rows.Err()
}
