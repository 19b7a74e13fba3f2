package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
)

// AppendTransaction records a new transaction and its splits. The returned
// category-months are the ones whose projections the write dirties.
func (s *store) AppendTransaction(ctx context.Context, txn *model.Transaction) ([]model.CategoryMonth, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}

	if txn.Revision == 0 {
		txn.Revision = 1
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(q queryable) error {
		var acctBudget string
		err := q.QueryRowContext(ctx, `
			SELECT budget_id FROM accounts WHERE id = ? AND deleted_at IS NULL`,
			txn.AccountID).Scan(&acctBudget)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", txn.AccountID, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if acctBudget != txn.BudgetID {
			return common.NewValidationError("account %s belongs to a different budget", txn.AccountID)
		}

		for i, sp := range txn.Splits {
			var catBudget string
			err := q.QueryRowContext(ctx, `
				SELECT budget_id FROM categories WHERE id = ? AND deleted_at IS NULL`,
				sp.CategoryID).Scan(&catBudget)
			if errors.Is(err, sql.ErrNoRows) {
				return common.NewSplitError(i, "category %s not found", sp.CategoryID)
			}
			if err != nil {
				return fmt.Errorf("failed to check category: %w", err)
			}
			if catBudget != txn.BudgetID {
				return common.NewSplitError(i, "category %s belongs to a different budget", sp.CategoryID)
			}
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO transactions (id, budget_id, account_id, tx_date, payee, memo, revision, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, txn.BudgetID, txn.AccountID, txn.Date, txn.Payee, txn.Memo, txn.Revision, txn.CreatedAt)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		return insertSplits(ctx, q, txn)
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("appended transaction",
		"id", txn.ID,
		"payee", txn.Payee,
		"splits", len(txn.Splits))
	return txn.CategoryMonths(), nil
}

// AmendTransaction replaces a transaction's content in place. The caller's
// expectedRevision must match the stored one or ErrStaleRevision is returned,
// so two concurrent amendments cannot silently overwrite each other. The
// returned category-months cover both the old and the new content.
func (s *store) AmendTransaction(ctx context.Context, txn *model.Transaction, expectedRevision int64) ([]model.CategoryMonth, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}

	var dirty []model.CategoryMonth
	err := s.withTx(ctx, func(q queryable) error {
		prev, err := getTransaction(ctx, q, txn.ID)
		if err != nil {
			return err
		}
		if prev.Voided {
			return common.NewValidationError("transaction %s is voided", txn.ID)
		}
		if prev.Revision != expectedRevision {
			return fmt.Errorf("transaction %s at revision %d, expected %d: %w",
				txn.ID, prev.Revision, expectedRevision, common.ErrStaleRevision)
		}
		if prev.BudgetID != txn.BudgetID {
			return common.NewValidationError("transaction %s belongs to a different budget", txn.ID)
		}

		var acctBudget string
		err = q.QueryRowContext(ctx, `
			SELECT budget_id FROM accounts WHERE id = ? AND deleted_at IS NULL`,
			txn.AccountID).Scan(&acctBudget)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", txn.AccountID, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if acctBudget != txn.BudgetID {
			return common.NewValidationError("account %s belongs to a different budget", txn.AccountID)
		}

		for i, sp := range txn.Splits {
			var catBudget string
			err := q.QueryRowContext(ctx, `
				SELECT budget_id FROM categories WHERE id = ? AND deleted_at IS NULL`,
				sp.CategoryID).Scan(&catBudget)
			if errors.Is(err, sql.ErrNoRows) {
				return common.NewSplitError(i, "category %s not found", sp.CategoryID)
			}
			if err != nil {
				return fmt.Errorf("failed to check category: %w", err)
			}
			if catBudget != txn.BudgetID {
				return common.NewSplitError(i, "category %s belongs to a different budget", sp.CategoryID)
			}
		}

		txn.Revision = prev.Revision + 1
		txn.CreatedAt = prev.CreatedAt

		_, err = q.ExecContext(ctx, `
			UPDATE transactions
			SET account_id = ?, tx_date = ?, payee = ?, memo = ?, revision = ?
			WHERE id = ?`,
			txn.AccountID, txn.Date, txn.Payee, txn.Memo, txn.Revision, txn.ID)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		_, err = q.ExecContext(ctx, `DELETE FROM transaction_splits WHERE transaction_id = ?`, txn.ID)
		if err != nil {
			return fmt.Errorf("failed to clear splits: %w", err)
		}
		if err := insertSplits(ctx, q, txn); err != nil {
			return err
		}

		dirty = mergeCategoryMonths(prev.CategoryMonths(), txn.CategoryMonths())
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("amended transaction", "id", txn.ID, "revision", txn.Revision)
	return dirty, nil
}

// VoidTransaction marks a transaction voided without destroying it. Voided
// transactions drop out of every balance and projection but stay readable.
func (s *store) VoidTransaction(ctx context.Context, id string) ([]model.CategoryMonth, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var dirty []model.CategoryMonth
	err := s.withTx(ctx, func(q queryable) error {
		prev, err := getTransaction(ctx, q, id)
		if err != nil {
			return err
		}
		if prev.Voided {
			return common.NewValidationError("transaction %s is already voided", id)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE transactions SET voided_at = ?, revision = revision + 1 WHERE id = ?`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to void transaction: %w", err)
		}

		dirty = prev.CategoryMonths()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("voided transaction", "id", id)
	return dirty, nil
}

// GetTransaction retrieves a transaction with its splits, voided or not.
func (s *store) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return getTransaction(ctx, s.q, id)
}

func getTransaction(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	var txn model.Transaction
	var voidedAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, budget_id, account_id, tx_date, payee, memo, revision, voided_at, created_at
		FROM transactions WHERE id = ?`, id).
		Scan(&txn.ID, &txn.BudgetID, &txn.AccountID, &txn.Date, &txn.Payee, &txn.Memo,
			&txn.Revision, &voidedAt, &txn.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.Voided = voidedAt.Valid

	rows, err := q.QueryContext(ctx, `
		SELECT id, category_id, memo, inflow, outflow
		FROM transaction_splits WHERE transaction_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sp model.Split
		if err := rows.Scan(&sp.ID, &sp.CategoryID, &sp.Memo, &sp.Inflow, &sp.Outflow); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		txn.Splits = append(txn.Splits, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns a budget's transactions matching the filter,
// newest first. Voided transactions are excluded unless asked for.
func (s *store) ListTransactions(ctx context.Context, budgetID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	query := `
		SELECT DISTINCT t.id, t.budget_id, t.account_id, t.tx_date, t.payee, t.memo,
			t.revision, t.voided_at, t.created_at
		FROM transactions t`
	args := []any{}
	conds := []string{"t.budget_id = ?"}

	if filter.CategoryID != "" {
		query += ` JOIN transaction_splits ts ON ts.transaction_id = t.id`
		conds = append(conds, "ts.category_id = ?")
	}
	args = append(args, budgetID)
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
	}
	if !filter.IncludeVoided {
		conds = append(conds, "t.voided_at IS NULL")
	}
	if filter.AccountID != "" {
		conds = append(conds, "t.account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.StartDate != nil {
		conds = append(conds, "t.tx_date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conds = append(conds, "t.tx_date < ?")
		args = append(args, *filter.EndDate)
	}

	query += " WHERE " + strings.Join(conds, " AND ")
	query += " ORDER BY t.tx_date DESC, t.created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	var ids []string
	byID := map[string]int{}
	for rows.Next() {
		var txn model.Transaction
		var voidedAt sql.NullTime
		if err := rows.Scan(&txn.ID, &txn.BudgetID, &txn.AccountID, &txn.Date, &txn.Payee,
			&txn.Memo, &txn.Revision, &voidedAt, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Voided = voidedAt.Valid
		byID[txn.ID] = len(txns)
		txns = append(txns, txn)
		ids = append(ids, txn.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	splitArgs := make([]any, len(ids))
	for i, id := range ids {
		splitArgs[i] = id
	}
	splitRows, err := s.q.QueryContext(ctx, `
		SELECT transaction_id, id, category_id, memo, inflow, outflow
		FROM transaction_splits
		WHERE transaction_id IN (`+placeholders+`)
		ORDER BY transaction_id, position`, splitArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer func() { _ = splitRows.Close() }()

	for splitRows.Next() {
		var txnID string
		var sp model.Split
		if err := splitRows.Scan(&txnID, &sp.ID, &sp.CategoryID, &sp.Memo, &sp.Inflow, &sp.Outflow); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if idx, ok := byID[txnID]; ok {
			txns[idx].Splits = append(txns[idx].Splits, sp)
		}
	}
	return txns, splitRows.Err()
}

// SplitsInRange streams the non-voided ledger entries for one category over
// [from, to] month-inclusive, in date order. This is the raw feed the
// projection fold consumes.
func (s *store) SplitsInRange(ctx context.Context, budgetID, categoryID string, from, to model.Month) ([]service.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return nil, err
	}
	if err := validateMonthRange(from, to); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.tx_date, ts.id, ts.category_id, ts.memo, ts.inflow, ts.outflow
		FROM transactions t
		JOIN transaction_splits ts ON ts.transaction_id = t.id
		WHERE t.budget_id = ?
			AND ts.category_id = ?
			AND t.voided_at IS NULL
			AND t.tx_date >= ?
			AND t.tx_date < ?
		ORDER BY t.tx_date, t.created_at`,
		budgetID, categoryID, from.Start(), to.Next().Start())
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []service.LedgerEntry
	for rows.Next() {
		var e service.LedgerEntry
		if err := rows.Scan(&e.TransactionID, &e.AccountID, &e.Date,
			&e.Split.ID, &e.Split.CategoryID, &e.Split.Memo, &e.Split.Inflow, &e.Split.Outflow); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertSplits(ctx context.Context, q queryable, txn *model.Transaction) error {
	for i := range txn.Splits {
		sp := &txn.Splits[i]
		if sp.ID == "" {
			sp.ID = model.NewID()
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO transaction_splits (id, transaction_id, category_id, memo, inflow, outflow, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sp.ID, txn.ID, sp.CategoryID, sp.Memo, sp.Inflow, sp.Outflow, i)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

func mergeCategoryMonths(a, b []model.CategoryMonth) []model.CategoryMonth {
	seen := make(map[model.CategoryMonth]struct{}, len(a)+len(b))
	merged := make([]model.CategoryMonth, 0, len(a)+len(b))
	for _, cm := range a {
		if _, ok := seen[cm]; !ok {
			seen[cm] = struct{}{}
			merged = append(merged, cm)
		}
	}
	for _, cm := range b {
		if _, ok := seen[cm]; !ok {
			seen[cm] = struct{}{}
			merged = append(merged, cm)
		}
	}
	return merged
}
