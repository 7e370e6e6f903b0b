package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// MonthSummary is the dashboard payload for one calendar month.
type MonthSummary struct {
	Year    int        `json:"year"`
	Month   int        `json:"month"`
	Income  core.Money `json:"Income"`
	Expense core.Money `json:"Expense"`
	Budgets int        `json:"Budget"`
	Goals   int        `json:"Goals"`
}

// DashboardService aggregates the monthly summary. The four reads are
// independent, so they run concurrently.
type DashboardService struct {
	store *storage.Repository
}

func NewDashboardService(store *storage.Repository) *DashboardService {
	return &DashboardService{store: store}
}

// MonthSummary returns income/expense totals plus budget and goal counts for
// the user's given month.
func (s *DashboardService) MonthSummary(ctx context.Context, userID string, year, month int) (MonthSummary, error) {
	if month < 1 || month > 12 {
		return MonthSummary{}, fmt.Errorf("%w: month %d", core.ErrInvalidDate, month)
	}

	start := core.NewDate(year, month, 1)
	end := core.DateOf(start.AddDate(0, 1, -1))
	monthPeriod := core.Period{StartDate: start, EndDate: end}

	summary := MonthSummary{Year: year, Month: month}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cents, err := s.store.SumTransactionsByType(gctx, userID, core.TypeIncome, monthPeriod)
		summary.Income = core.Money{Cents: cents}
		return err
	})
	g.Go(func() error {
		cents, err := s.store.SumTransactionsByType(gctx, userID, core.TypeExpense, monthPeriod)
		summary.Expense = core.Money{Cents: cents}
		return err
	})
	g.Go(func() error {
		count, err := s.store.CountBudgetsInPeriod(gctx, userID, monthPeriod)
		summary.Budgets = count
		return err
	})
	g.Go(func() error {
		count, err := s.store.CountActiveGoals(gctx, userID, start)
		summary.Goals = count
		return err
	})

	if err := g.Wait(); err != nil {
		return MonthSummary{}, fmt.Errorf("aggregate month summary: %w", err)
	}
	return summary, nil
}

// CurrentMonth is a convenience for the dashboard's default view.
func (s *DashboardService) CurrentMonth(ctx context.Context, userID string) (MonthSummary, error) {
	now := time.Now().UTC()
	return s.MonthSummary(ctx, userID, now.Year(), int(now.Month()))
}
