// Command reconcile rebuilds budget spent totals from the transactions
// table. With -budget it repairs a single budget, otherwise every budget in
// the database. Intended for operators after incident recovery or manual
// database edits.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	budgetID := flag.String("budget", "", "repair a single budget id instead of all budgets")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	reconciler := services.NewReconciler(store, nil)

	ids := []string{*budgetID}
	if *budgetID == "" {
		ids, err = store.ListBudgetIDs(ctx)
		if err != nil {
			logger.Error("Failed to list budgets", "error", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, id := range ids {
		spent, err := reconciler.Recompute(ctx, id)
		if err != nil {
			logger.Error("Recompute failed", "budget_id", id, "error", err)
			failed++
			continue
		}
		logger.Info("Budget reconciled", "budget_id", id, "spent", spent.Units())
	}

	logger.Info("Reconciliation finished", "budgets", len(ids), "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
