package core

import (
	"strings"
	"time"
)

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

type (
	TransactionType string

	// Period is an inclusive calendar date range during which a budget cap
	// applies to one category.
	Period struct {
		StartDate Date `json:"startDate"`
		EndDate   Date `json:"endDate"`
	}

	Transaction struct {
		ID          string          `json:"_id"`
		UserID      string          `json:"user_id"`
		CategoryID  string          `json:"category_id"`
		Amount      Money           `json:"amount"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Type        TransactionType `json:"transaction_type"`
		CreatedAt   time.Time       `json:"-"`
	}

	// Budget caps spending for one (user, category) over a period. Spent is
	// derived: once reconciliation settles it must equal the sum of expense
	// transactions matching the budget.
	Budget struct {
		ID         string          `json:"_id"`
		UserID     string          `json:"user_id"`
		CategoryID string          `json:"category_id"`
		Amount     Money           `json:"amount"`
		Spent      Money           `json:"spent"`
		Period     Period          `json:"period"`
		Type       TransactionType `json:"transaction_type"`
		CreatedAt  time.Time       `json:"-"`
	}

	Category struct {
		ID     string          `json:"_id"`
		Name   string          `json:"name"`
		Type   TransactionType `json:"category_type"`
		UserID string          `json:"user_id,omitempty"` // empty = global default
	}

	Goal struct {
		ID            string    `json:"_id"`
		UserID        string    `json:"user_id"`
		Name          string    `json:"name"`
		TargetAmount  Money     `json:"targetAmount"`
		CurrentAmount Money     `json:"currentAmount"`
		Deadline      Date      `json:"deadline"`
		Status        string    `json:"status"`
		CreatedAt     time.Time `json:"-"`
	}
)

func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Contains reports whether day falls within the period, inclusive on both ends.
func (p Period) Contains(day Date) bool {
	return !day.Before(p.StartDate.Time) && !day.After(p.EndDate.Time)
}

// Overlaps reports whether two inclusive ranges share at least one day:
// s1 <= e2 && s2 <= e1.
func (p Period) Overlaps(other Period) bool {
	return !p.StartDate.After(other.EndDate.Time) && !other.StartDate.After(p.EndDate.Time)
}

func (p Period) Validate() error {
	if err := p.StartDate.Validate(); err != nil {
		return err
	}
	if err := p.EndDate.Validate(); err != nil {
		return err
	}
	if p.StartDate.After(p.EndDate.Time) {
		return ErrInvalidPeriod
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrMissingCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidTxType
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrMissingCategory
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Spent.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if !b.Type.Valid() {
		return ErrInvalidTxType
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrMissingUser
	}
	if len(strings.TrimSpace(g.Name)) == 0 {
		return ErrEmptyName
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	return g.Deadline.Validate()
}

// Matches reports whether tx is attributable to budget b: same user, same
// category, expense-typed, and dated inside the budget period. The overlap
// invariant guarantees at most one budget matches any transaction.
func (b Budget) Matches(tx Transaction) bool {
	return tx.Type == TypeExpense &&
		tx.UserID == b.UserID &&
		tx.CategoryID == b.CategoryID &&
		b.Period.Contains(tx.Date)
}
