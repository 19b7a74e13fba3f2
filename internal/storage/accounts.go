package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

// CreateAccount creates an account under a budget.
func (s *store) CreateAccount(ctx context.Context, budgetID, name string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	if _, err := s.GetBudget(ctx, budgetID); err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:        model.NewID(),
		BudgetID:  budgetID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, budget_id, name, created_at)
		VALUES (?, ?, ?, ?)`,
		account.ID, account.BudgetID, account.Name, account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by ID. Soft-deleted accounts are not
// returned.
func (s *store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var a model.Account
	err := s.q.QueryRowContext(ctx, `
		SELECT id, budget_id, name, created_at
		FROM accounts WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&a.ID, &a.BudgetID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns a budget's live accounts in creation order.
func (s *store) ListAccounts(ctx context.Context, budgetID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, budget_id, name, created_at
		FROM accounts
		WHERE budget_id = ? AND deleted_at IS NULL
		ORDER BY created_at`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.BudgetID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// RenameAccount updates an account's name.
func (s *store) RenameAccount(ctx context.Context, id, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts SET name = ? WHERE id = ? AND deleted_at IS NULL`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteAccount soft-deletes an account. Accounts with ledger history are
// refused so transactions never reference a vanished account.
func (s *store) DeleteAccount(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(q queryable) error {
		var refs int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM transactions WHERE account_id = ? AND voided_at IS NULL`, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("failed to check account references: %w", err)
		}
		if refs > 0 {
			return common.NewValidationError("account has %d transactions; void them first", refs)
		}

		res, err := q.ExecContext(ctx, `
			UPDATE accounts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("account %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}

// AccountBalances returns each live account's balance: the signed sum of
// its non-voided splits dated through the end of the given month.
func (s *store) AccountBalances(ctx context.Context, budgetID string, through model.Month) (map[string]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT a.id, COALESCE(SUM(ts.inflow - ts.outflow), 0)
		FROM accounts a
		LEFT JOIN transactions t
			ON t.account_id = a.id AND t.voided_at IS NULL AND t.tx_date < ?
		LEFT JOIN transaction_splits ts ON ts.transaction_id = t.id
		WHERE a.budget_id = ? AND a.deleted_at IS NULL
		GROUP BY a.id`,
		through.Next().Start(), budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query account balances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	balances := make(map[string]int64)
	for rows.Next() {
		var id string
		var balance int64
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account balance: %w", err)
		}
		balances[id] = balance
	}
	return balances, rows.Err()
}
