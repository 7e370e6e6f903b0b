package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	StartDate  core.Date
	EndDate    core.Date
	Type       core.TransactionType
	CategoryID string
}

// TransactionWithCategory is the category-joined projection served by the
// list endpoints.
type TransactionWithCategory struct {
	core.Transaction
	CategoryName string `json:"category_name"`
}

const transactionColumns = `id, user_id, category_id, amount_cents, tx_date, description, transaction_type, created_at`

// CreateTransaction inserts a transaction row.
func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, category_id, amount_cents, tx_date, description, transaction_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.CategoryID, tx.Amount.Cents, tx.Date.String(), tx.Description, string(tx.Type))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"user_id", tx.UserID,
		"category_id", tx.CategoryID,
		"amount_cents", tx.Amount.Cents,
		"date", tx.Date.String(),
		"type", tx.Type)
	return nil
}

// GetTransaction fetches one transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// UpdateTransaction replaces the mutable fields of an existing row. Field
// merging (presence-based patch semantics) happens in the service layer;
// storage always writes the full row.
func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, amount_cents = ?, tx_date = ?, description = ?, transaction_type = ?
		WHERE id = ?`,
		tx.CategoryID, tx.Amount.Cents, tx.Date.String(), tx.Description, string(tx.Type), tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction row.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListTransactions returns a user's transactions newest first, joined with
// the category name for display.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]TransactionWithCategory, error) {
	query := `
		SELECT t.id, t.user_id, t.category_id, t.amount_cents, t.tx_date, t.description,
		       t.transaction_type, t.created_at, COALESCE(c.name, '')
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?`
	args := []any{userID}

	if !f.StartDate.IsZero() {
		query += ` AND t.tx_date >= ?`
		args = append(args, f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		query += ` AND t.tx_date <= ?`
		args = append(args, f.EndDate.String())
	}
	if f.Type != "" {
		query += ` AND t.transaction_type = ?`
		args = append(args, string(f.Type))
	}
	if f.CategoryID != "" {
		query += ` AND t.category_id = ?`
		args = append(args, f.CategoryID)
	}
	query += ` ORDER BY t.tx_date DESC, t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionWithCategory
	for rows.Next() {
		var (
			item      TransactionWithCategory
			dateStr   string
			typeStr   string
			createdAt sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.CategoryID, &item.Amount.Cents,
			&dateStr, &item.Description, &typeStr, &createdAt, &item.CategoryName); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if item.Date, err = core.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
		}
		item.Type = core.TransactionType(typeStr)
		item.CreatedAt = scanTime(createdAt)
		out = append(out, item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		dateStr   string
		typeStr   string
		createdAt sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.CategoryID, &tx.Amount.Cents,
		&dateStr, &tx.Description, &typeStr, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.Date, err = core.ParseDate(dateStr); err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	tx.Type = core.TransactionType(typeStr)
	tx.CreatedAt = scanTime(createdAt)
	return tx, nil
}
