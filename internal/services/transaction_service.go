package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// TransactionPatch carries a partial update. Nil fields keep their previous
// values; a present field is applied even when zero, so "set description to
// empty" and "leave description alone" are distinguishable.
type TransactionPatch struct {
	Amount      *core.Money
	Date        *core.Date
	Description *string
	Type        *core.TransactionType
	CategoryID  *string
}

// TransactionService runs the transaction lifecycle. Every successful
// mutation invokes the reconciler synchronously before returning, so the
// caller observes an up-to-date budget on the next read.
type TransactionService struct {
	store      *storage.Repository
	reconciler *Reconciler
}

func NewTransactionService(store *storage.Repository, reconciler *Reconciler) *TransactionService {
	return &TransactionService{store: store, reconciler: reconciler}
}

// Create validates and persists a transaction, then credits the covering
// budget if one exists.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = uuid.NewString()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, tx.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.reconciler.TransactionCreated(ctx, tx)
	return tx, nil
}

// Update applies a partial patch and reconciles the before/after states as
// remove-then-reapply against their covering budgets.
func (s *TransactionService) Update(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, error) {
	before, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	after := before
	if patch.Amount != nil {
		after.Amount = *patch.Amount
	}
	if patch.Date != nil {
		after.Date = *patch.Date
	}
	if patch.Description != nil {
		after.Description = *patch.Description
	}
	if patch.Type != nil {
		after.Type = *patch.Type
	}
	if patch.CategoryID != nil {
		after.CategoryID = *patch.CategoryID
	}

	if err := after.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if patch.CategoryID != nil {
		if err := s.checkCategory(ctx, after.CategoryID); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := s.store.UpdateTransaction(ctx, after); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.reconciler.TransactionUpdated(ctx, before, after)
	return after, nil
}

// Delete removes a transaction and reverses its effect on the covering
// budget.
func (s *TransactionService) Delete(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}

	s.reconciler.TransactionDeleted(ctx, tx)
	return tx, nil
}

// List returns the category-joined projection for a user.
func (s *TransactionService) List(ctx context.Context, userID string, f storage.TransactionFilter) ([]storage.TransactionWithCategory, error) {
	return s.store.ListTransactions(ctx, userID, f)
}

// Get fetches a single transaction.
func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) checkCategory(ctx context.Context, categoryID string) error {
	_, err := s.store.GetCategory(ctx, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrMissingCategory
	}
	return err
}
