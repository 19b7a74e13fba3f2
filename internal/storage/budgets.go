package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

// CreateBudget creates a new budget. When isDefault is set, any previous
// default is cleared so at most one budget is ever marked default.
func (s *store) CreateBudget(ctx context.Context, name, currencyCode string, isDefault bool) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if currencyCode == "" {
		currencyCode = "USD"
	}

	budget := &model.Budget{
		ID:           model.NewID(),
		Name:         name,
		CurrencyCode: currencyCode,
		IsDefault:    isDefault,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.withTx(ctx, func(q queryable) error {
		if isDefault {
			if _, err := q.ExecContext(ctx, `UPDATE budgets SET is_default = 0 WHERE is_default = 1`); err != nil {
				return fmt.Errorf("failed to clear default budget: %w", err)
			}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO budgets (id, name, currency_code, is_default, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			budget.ID, budget.Name, budget.CurrencyCode, budget.IsDefault, budget.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created budget", "name", name, "id", budget.ID)
	return budget, nil
}

// GetBudget retrieves a budget by ID.
func (s *store) GetBudget(ctx context.Context, id string) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var b model.Budget
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, currency_code, is_default, created_at
		FROM budgets WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.CurrencyCode, &b.IsDefault, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return &b, nil
}

// GetDefaultBudget retrieves the budget marked as default.
func (s *store) GetDefaultBudget(ctx context.Context) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var b model.Budget
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, currency_code, is_default, created_at
		FROM budgets WHERE is_default = 1`).
		Scan(&b.ID, &b.Name, &b.CurrencyCode, &b.IsDefault, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("default budget: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default budget: %w", err)
	}
	return &b, nil
}

// ListBudgets returns all budgets in creation order.
func (s *store) ListBudgets(ctx context.Context) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, currency_code, is_default, created_at
		FROM budgets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		var b model.Budget
		if err := rows.Scan(&b.ID, &b.Name, &b.CurrencyCode, &b.IsDefault, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// SetDefaultBudget marks the given budget as default, clearing any other.
func (s *store) SetDefaultBudget(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(q queryable) error {
		res, err := q.ExecContext(ctx, `UPDATE budgets SET is_default = 1 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to set default budget: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("budget %s: %w", id, common.ErrNotFound)
		}
		if _, err := q.ExecContext(ctx, `UPDATE budgets SET is_default = 0 WHERE id != ? AND is_default = 1`, id); err != nil {
			return fmt.Errorf("failed to clear previous default: %w", err)
		}
		return nil
	})
}

// DeleteBudget destroys a budget and everything it owns. Foreign keys
// cascade to accounts, categories, transactions, deltas, and cached
// projections. The coordinator requires explicit confirmation before
// calling this when transactions exist.
func (s *store) DeleteBudget(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(q queryable) error {
		// splits and categories reference their parents without cascade;
		// remove them bottom-up before the budget row goes.
		steps := []string{
			`DELETE FROM transaction_splits WHERE transaction_id IN (SELECT id FROM transactions WHERE budget_id = ?)`,
			`DELETE FROM projections WHERE budget_id = ?`,
			`DELETE FROM assignment_deltas WHERE budget_id = ?`,
			`DELETE FROM transactions WHERE budget_id = ?`,
			`DELETE FROM categories WHERE budget_id = ?`,
			`DELETE FROM supercategories WHERE budget_id = ?`,
			`DELETE FROM accounts WHERE budget_id = ?`,
		}
		for _, step := range steps {
			if _, err := q.ExecContext(ctx, step, id); err != nil {
				return fmt.Errorf("failed to cascade budget delete: %w", err)
			}
		}

		res, err := q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete budget: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("budget %s: %w", id, common.ErrNotFound)
		}
		slog.Info("deleted budget", "id", id)
		return nil
	})
}

// CountTransactions returns the number of transactions in a budget,
// including voided ones.
func (s *store) CountTransactions(ctx context.Context, budgetID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return 0, err
	}

	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE budget_id = ?`, budgetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
