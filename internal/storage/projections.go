package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
)

// CategoryMonthlyTotals aggregates one category's assigned and activity per
// month, from the earliest month with data through the given month. Months
// with neither deltas nor activity are absent from the result; the fold
// treats them as zero.
func (s *store) CategoryMonthlyTotals(ctx context.Context, budgetID, categoryID string, through model.Month) ([]service.MonthlyTotals, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return nil, err
	}
	if through.IsZero() {
		return nil, common.NewValidationError("month is required")
	}

	totals := map[model.Month]*service.MonthlyTotals{}

	rows, err := s.q.QueryContext(ctx, `
		SELECT month, COALESCE(SUM(amount), 0)
		FROM assignment_deltas
		WHERE budget_id = ? AND category_id = ? AND month <= ?
		GROUP BY month`,
		budgetID, categoryID, through.String())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var monthStr string
		var assigned int64
		if err := rows.Scan(&monthStr, &assigned); err != nil {
			return nil, fmt.Errorf("failed to scan assignment total: %w", err)
		}
		m, err := model.ParseMonth(monthStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored month %q: %w", monthStr, err)
		}
		totals[m] = &service.MonthlyTotals{Month: m, Assigned: assigned}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	actRows, err := s.q.QueryContext(ctx, `
		SELECT strftime('%Y-%m', t.tx_date), COALESCE(SUM(ts.inflow - ts.outflow), 0)
		FROM transactions t
		JOIN transaction_splits ts ON ts.transaction_id = t.id
		WHERE t.budget_id = ?
			AND ts.category_id = ?
			AND t.voided_at IS NULL
			AND t.tx_date < ?
		GROUP BY strftime('%Y-%m', t.tx_date)`,
		budgetID, categoryID, through.Next().Start())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate activity: %w", err)
	}
	defer func() { _ = actRows.Close() }()
	for actRows.Next() {
		var monthStr string
		var activity int64
		if err := actRows.Scan(&monthStr, &activity); err != nil {
			return nil, fmt.Errorf("failed to scan activity total: %w", err)
		}
		m, err := model.ParseMonth(monthStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored month %q: %w", monthStr, err)
		}
		if mt, ok := totals[m]; ok {
			mt.Activity = activity
		} else {
			totals[m] = &service.MonthlyTotals{Month: m, Activity: activity}
		}
	}
	if err := actRows.Err(); err != nil {
		return nil, err
	}

	result := make([]service.MonthlyTotals, 0, len(totals))
	for _, mt := range totals {
		result = append(result, *mt)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month.Before(result[j].Month)
	})
	return result, nil
}

// MonthFlows sums a budget's non-voided inflow and outflow within one month.
func (s *store) MonthFlows(ctx context.Context, budgetID string, month model.Month) (inflow, outflow int64, err error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return 0, 0, err
	}
	if month.IsZero() {
		return 0, 0, common.NewValidationError("month is required")
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ts.inflow), 0), COALESCE(SUM(ts.outflow), 0)
		FROM transactions t
		JOIN transaction_splits ts ON ts.transaction_id = t.id
		WHERE t.budget_id = ?
			AND t.voided_at IS NULL
			AND t.tx_date >= ?
			AND t.tx_date < ?`,
		budgetID, month.Start(), month.Next().Start()).Scan(&inflow, &outflow)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum month flows: %w", err)
	}
	return inflow, outflow, nil
}

// GetCachedProjections returns the cached projections for a budget-month.
// The second return reports whether a complete, fresh cache row set exists;
// any stale row makes the whole month a miss. Rows whose category has since
// been deleted are never served.
func (s *store) GetCachedProjections(ctx context.Context, budgetID string, month model.Month) ([]model.CategoryProjection, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, false, err
	}
	if month.IsZero() {
		return nil, false, common.NewValidationError("month is required")
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT p.category_id, p.assigned, p.activity, p.available, p.stale
		FROM projections p
		JOIN categories c ON c.id = p.category_id AND c.deleted_at IS NULL
		WHERE p.budget_id = ? AND p.month = ?
		ORDER BY p.category_id`,
		budgetID, month.String())
	if err != nil {
		return nil, false, fmt.Errorf("failed to query projections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projections []model.CategoryProjection
	fresh := true
	for rows.Next() {
		var p model.CategoryProjection
		var stale bool
		if err := rows.Scan(&p.CategoryID, &p.Assigned, &p.Activity, &p.Available, &stale); err != nil {
			return nil, false, fmt.Errorf("failed to scan projection: %w", err)
		}
		if stale {
			fresh = false
		}
		p.Month = month
		projections = append(projections, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(projections) == 0 {
		return nil, false, nil
	}
	return projections, fresh, nil
}

// UpsertProjections writes a recomputed set of projections for one
// budget-month, clearing any stale flags.
func (s *store) UpsertProjections(ctx context.Context, budgetID string, month model.Month, projections []model.CategoryProjection) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return err
	}
	if month.IsZero() {
		return common.NewValidationError("month is required")
	}

	return s.withTx(ctx, func(q queryable) error {
		now := time.Now().UTC()
		for _, p := range projections {
			_, err := q.ExecContext(ctx, `
				INSERT INTO projections (budget_id, category_id, month, assigned, activity, available, stale, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, 0, ?)
				ON CONFLICT(category_id, month) DO UPDATE SET
					assigned = excluded.assigned,
					activity = excluded.activity,
					available = excluded.available,
					stale = 0,
					updated_at = excluded.updated_at`,
				budgetID, p.CategoryID, month.String(), p.Assigned, p.Activity, p.Available, now)
			if err != nil {
				return fmt.Errorf("failed to upsert projection: %w", err)
			}
		}
		return nil
	})
}

// MarkProjectionsStale flags every cached projection for the given category
// from the given month onward. A stale row is still readable but no longer
// trusted; the next materialization recomputes it.
func (s *store) MarkProjectionsStale(ctx context.Context, categoryID string, from model.Month) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return err
	}
	if from.IsZero() {
		return common.NewValidationError("month is required")
	}

	_, err := s.q.ExecContext(ctx, `
		UPDATE projections SET stale = 1 WHERE category_id = ? AND month >= ?`,
		categoryID, from.String())
	if err != nil {
		return fmt.Errorf("failed to mark projections stale: %w", err)
	}
	return nil
}

// LatestCachedMonth reports the most recent month with any cached projection
// for a budget. The zero Month and false mean nothing is cached yet.
func (s *store) LatestCachedMonth(ctx context.Context, budgetID string) (model.Month, bool, error) {
	if err := validateContext(ctx); err != nil {
		return model.Month{}, false, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return model.Month{}, false, err
	}

	// MAX over an empty table yields NULL rather than ErrNoRows.
	var monthStr sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT MAX(month) FROM projections WHERE budget_id = ?`, budgetID).Scan(&monthStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Month{}, false, nil
	}
	if err != nil {
		return model.Month{}, false, fmt.Errorf("failed to find latest cached month: %w", err)
	}
	if !monthStr.Valid {
		return model.Month{}, false, nil
	}

	m, err := model.ParseMonth(monthStr.String)
	if err != nil {
		return model.Month{}, false, fmt.Errorf("failed to parse stored month %q: %w", monthStr.String, err)
	}
	return m, true, nil
}
