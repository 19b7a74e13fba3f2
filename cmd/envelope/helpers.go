package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/envelopezero/engine/internal/config"
	"github.com/envelopezero/engine/internal/engine"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
	"github.com/envelopezero/engine/internal/storage"
)

// initStorage opens the database from config and runs migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initCoordinator opens storage and wraps it in a mutation coordinator.
func initCoordinator(ctx context.Context) (service.Storage, *engine.Coordinator, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store, engine.NewCoordinator(store), nil
}

// resolveBudget returns the budget named by --budget, or the default budget.
func resolveBudget(ctx context.Context, store service.Storage) (*model.Budget, error) {
	if id := viper.GetString("budget"); id != "" {
		return store.GetBudget(ctx, id)
	}
	budget, err := store.GetDefaultBudget(ctx)
	if err != nil {
		return nil, fmt.Errorf("no default budget; create one with 'envelope budgets create' or pass --budget: %w", err)
	}
	return budget, nil
}

// parseCents parses a decimal amount like "125.50" or "-3" into cents.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	// The sign may come before or after the currency symbol.
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-") {
		if negative {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		negative = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if whole == "" {
		whole = "0"
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var cents int64
	switch len(frac) {
	case 0:
	case 1:
		cents, err = strconv.ParseInt(frac, 10, 64)
		cents *= 10
	case 2:
		cents, err = strconv.ParseInt(frac, 10, 64)
	default:
		return 0, fmt.Errorf("invalid amount %q: at most two decimal places", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	total := dollars*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

// resolveCategory accepts either a category ID or a category name within the
// budget. Names are matched case-insensitively and must be unambiguous.
func resolveCategory(ctx context.Context, store service.Storage, budgetID, ref string) (*model.Category, error) {
	if cat, err := store.GetCategory(ctx, ref); err == nil && cat.BudgetID == budgetID {
		return cat, nil
	}

	categories, err := store.ListCategories(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	var match *model.Category
	for i := range categories {
		if strings.EqualFold(categories[i].Name, ref) {
			if match != nil {
				return nil, fmt.Errorf("category name %q is ambiguous; use the ID", ref)
			}
			match = &categories[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("unknown category %q", ref)
	}
	return match, nil
}

// resolveAccount accepts either an account ID or an account name within the
// budget.
func resolveAccount(ctx context.Context, store service.Storage, budgetID, ref string) (*model.Account, error) {
	if acct, err := store.GetAccount(ctx, ref); err == nil && acct.BudgetID == budgetID {
		return acct, nil
	}

	accounts, err := store.ListAccounts(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	var match *model.Account
	for i := range accounts {
		if strings.EqualFold(accounts[i].Name, ref) {
			if match != nil {
				return nil, fmt.Errorf("account name %q is ambiguous; use the ID", ref)
			}
			match = &accounts[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("unknown account %q", ref)
	}
	return match, nil
}

// categoryNames builds an ID-to-name map for display.
func categoryNames(ctx context.Context, store service.Storage, budgetID string) (map[string]string, error) {
	categories, err := store.ListCategories(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}
