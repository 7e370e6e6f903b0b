package core

import (
	"errors"
	"fmt"
)

// Validation failures. Surfaced as 400s; never retried.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingDate     = errors.New("missing date")
	ErrInvalidDate     = errors.New("invalid date")
	ErrMissingCategory = errors.New("missing category")
	ErrInvalidTxType   = errors.New("invalid transaction type")
	ErrInvalidPeriod   = errors.New("start date must not be after end date")
	ErrMissingUser     = errors.New("missing user")
	ErrEmptyName       = errors.New("empty name")
)

// ErrNotFound indicates a referenced transaction, budget or goal id does not
// exist. Surfaced as 404.
var ErrNotFound = errors.New("not found")

// ErrBudgetOverlap is the conflict returned when a budget's (category, period)
// would overlap an existing budget for the same user. The message is part of
// the API contract.
var ErrBudgetOverlap = errors.New("A budget for this category already exists in the given date range.")

// ErrAmbiguousBudget means more than one budget matched a transaction, which
// the overlap invariant should make impossible. The reconciliation engine
// refuses to adjust anything when this happens: incrementing several budgets
// would double-count.
var ErrAmbiguousBudget = errors.New("multiple budgets match transaction")

// ReconciliationError records a spent-adjustment failure that happened after
// the primary transaction or budget write already committed. The primary
// entity is the source of truth and is never rolled back; spent is a derived
// cache that a full recompute can repair.
type ReconciliationError struct {
	BudgetID      string
	TransactionID string
	Op            string // "increment", "decrement", "recompute"
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile budget spent (op=%s, budget=%s, transaction=%s): %v",
		e.Op, e.BudgetID, e.TransactionID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
