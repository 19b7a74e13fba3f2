package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

// ApplyDelta appends a signed assignment adjustment for a category-month.
// The log is append-only: a correction is another delta, never an edit.
// Zero-amount deltas are rejected so the log carries only real changes.
func (s *store) ApplyDelta(ctx context.Context, delta *model.AssignmentDelta) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if delta == nil {
		return fmt.Errorf("delta %w", ErrNilParameter)
	}
	if err := validateString(delta.BudgetID, "budgetID"); err != nil {
		return err
	}
	if err := validateString(delta.CategoryID, "categoryID"); err != nil {
		return err
	}
	if delta.Month.IsZero() {
		return common.NewValidationError("delta month is required")
	}
	if delta.Amount == 0 {
		return common.ErrNoOpDelta
	}

	cat, err := s.GetCategory(ctx, delta.CategoryID)
	if err != nil {
		return err
	}
	if cat.BudgetID != delta.BudgetID {
		return common.NewValidationError("category %s belongs to a different budget", delta.CategoryID)
	}

	if delta.ID == "" {
		delta.ID = model.NewID()
	}
	if delta.CreatedAt.IsZero() {
		delta.CreatedAt = time.Now().UTC()
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO assignment_deltas (id, budget_id, category_id, month, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		delta.ID, delta.BudgetID, delta.CategoryID, delta.Month.String(), delta.Amount, delta.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assignment delta: %w", err)
	}

	slog.Debug("applied assignment delta",
		"category", delta.CategoryID,
		"month", delta.Month.String(),
		"amount", delta.Amount)
	return nil
}

// Cumulative sums every delta recorded against one category in exactly the
// given month. Deltas never carry across months here; carry-forward is the
// projection's job.
func (s *store) Cumulative(ctx context.Context, categoryID string, month model.Month) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return 0, err
	}
	if month.IsZero() {
		return 0, common.NewValidationError("month is required")
	}

	var sum int64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM assignment_deltas
		WHERE category_id = ? AND month = ?`,
		categoryID, month.String()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum assignment deltas: %w", err)
	}
	return sum, nil
}

// ListAssignments returns the raw delta log for a budget and month in
// application order.
func (s *store) ListAssignments(ctx context.Context, budgetID string, month model.Month) ([]model.AssignmentDelta, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}
	if month.IsZero() {
		return nil, common.NewValidationError("month is required")
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, budget_id, category_id, month, amount, created_at
		FROM assignment_deltas
		WHERE budget_id = ? AND month = ?
		ORDER BY created_at`, budgetID, month.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment deltas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deltas []model.AssignmentDelta
	for rows.Next() {
		var d model.AssignmentDelta
		var monthStr string
		if err := rows.Scan(&d.ID, &d.BudgetID, &d.CategoryID, &monthStr, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment delta: %w", err)
		}
		d.Month, err = model.ParseMonth(monthStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored month %q: %w", monthStr, err)
		}
		deltas = append(deltas, d)
	}
	return deltas, rows.Err()
}
