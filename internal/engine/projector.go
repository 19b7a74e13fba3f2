// Package engine implements the projection, dashboard, and mutation
// coordination layers of the budgeting engine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
)

// Projector computes per-category monthly projections: assigned, activity,
// and available with unconditional carry-forward. Categories are independent
// of each other, so a full-budget materialization fans out across them.
type Projector struct {
	storage service.Storage
}

// NewProjector creates a projector backed by the given storage.
func NewProjector(storage service.Storage) *Projector {
	return &Projector{storage: storage}
}

// MonthProjections returns the projection of every category in the budget
// for one month. A fresh cache is served as-is; otherwise every category is
// recomputed in parallel and the cache is refilled.
func (p *Projector) MonthProjections(ctx context.Context, budgetID string, month model.Month) ([]model.CategoryProjection, error) {
	if _, err := p.storage.GetBudget(ctx, budgetID); err != nil {
		return nil, err
	}
	if month.IsZero() {
		return nil, common.NewValidationError("month is required")
	}

	cached, fresh, err := p.storage.GetCachedProjections(ctx, budgetID, month)
	if err != nil {
		return nil, common.WrapStorage("get cached projections", err)
	}
	if fresh {
		categories, err := p.storage.ListCategories(ctx, budgetID)
		if err != nil {
			return nil, common.WrapStorage("list categories", err)
		}
		// The cache is only as current as the roster it was filled from: a
		// category created or deleted since then leaves rows missing or
		// orphaned, so serve it only when the IDs match the live roster.
		if cacheMatchesRoster(cached, categories) {
			slog.Debug("projection cache hit", "budget", budgetID, "month", month.String())
			return cached, nil
		}
	}

	projections, err := p.computeMonth(ctx, budgetID, month)
	if err != nil {
		return nil, err
	}

	if err := p.storage.UpsertProjections(ctx, budgetID, month, projections); err != nil {
		return nil, common.WrapStorage("cache projections", err)
	}
	return projections, nil
}

// CategoryProjection computes one category's projection for one month. The
// category must belong to the budget.
func (p *Projector) CategoryProjection(ctx context.Context, budgetID, categoryID string, month model.Month) (*model.CategoryProjection, error) {
	cat, err := p.storage.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if cat.BudgetID != budgetID {
		return nil, fmt.Errorf("category %s in budget %s: %w", categoryID, budgetID, common.ErrNotFound)
	}
	if month.IsZero() {
		return nil, common.NewValidationError("month is required")
	}

	proj, err := projectCategory(ctx, p.storage, budgetID, categoryID, month)
	if err != nil {
		return nil, err
	}
	return &proj, nil
}

// cacheMatchesRoster reports whether the cached rows cover exactly the live
// categories. Cached rows are unique per category, so equal sizes plus full
// membership means the sets are identical.
func cacheMatchesRoster(cached []model.CategoryProjection, categories []model.Category) bool {
	if len(cached) != len(categories) {
		return false
	}
	ids := make(map[string]bool, len(cached))
	for _, proj := range cached {
		ids[proj.CategoryID] = true
	}
	for _, cat := range categories {
		if !ids[cat.ID] {
			return false
		}
	}
	return true
}

func (p *Projector) computeMonth(ctx context.Context, budgetID string, month model.Month) ([]model.CategoryProjection, error) {
	categories, err := p.storage.ListCategories(ctx, budgetID)
	if err != nil {
		return nil, common.WrapStorage("list categories", err)
	}

	projections := make([]model.CategoryProjection, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range categories {
		g.Go(func() error {
			proj, err := projectCategory(gctx, p.storage, budgetID, cat.ID, month)
			if err != nil {
				return err
			}
			projections[i] = proj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(projections, func(i, j int) bool {
		return projections[i].CategoryID < projections[j].CategoryID
	})
	return projections, nil
}

// projectCategory folds a category's monthly totals in month order up to and
// including the target month. Available carries forward unconditionally:
// overspending in one month drags the next month's starting point below
// zero. A month before any recorded history projects to all zeros.
func projectCategory(ctx context.Context, s service.Storage, budgetID, categoryID string, month model.Month) (model.CategoryProjection, error) {
	totals, err := s.CategoryMonthlyTotals(ctx, budgetID, categoryID, month)
	if err != nil {
		return model.CategoryProjection{}, common.WrapStorage("aggregate category months", err)
	}

	proj := model.CategoryProjection{CategoryID: categoryID, Month: month}
	var carry int64
	for _, mt := range totals {
		carry += mt.Assigned + mt.Activity
		if mt.Month == month {
			proj.Assigned = mt.Assigned
			proj.Activity = mt.Activity
		}
	}
	proj.Available = carry
	return proj, nil
}

// recomputeProjections refreshes the cached projections dirtied by a
// mutation, from each dirty month through the cached tail. It runs against
// the same storage handle as the mutation (a transaction, in practice) so
// the cache and the ledger move together. Months nobody has cached stay
// unmaterialized; the next read computes them.
func recomputeProjections(ctx context.Context, s service.Storage, budgetID string, dirty []model.CategoryMonth) error {
	if len(dirty) == 0 {
		return nil
	}

	tail, ok, err := s.LatestCachedMonth(ctx, budgetID)
	if err != nil {
		return common.WrapStorage("find cached tail", err)
	}
	if !ok {
		return nil
	}

	// One fold per category, starting at its earliest dirty month.
	earliest := make(map[string]model.Month, len(dirty))
	for _, cm := range dirty {
		if first, seen := earliest[cm.CategoryID]; !seen || cm.Month.Before(first) {
			earliest[cm.CategoryID] = cm.Month
		}
	}

	for categoryID, from := range earliest {
		if tail.Before(from) {
			continue
		}
		totals, err := s.CategoryMonthlyTotals(ctx, budgetID, categoryID, tail)
		if err != nil {
			return common.WrapStorage("aggregate category months", err)
		}

		byMonth := make(map[model.Month]service.MonthlyTotals, len(totals))
		var carry int64
		for _, mt := range totals {
			byMonth[mt.Month] = mt
			if mt.Month.Before(from) {
				carry += mt.Assigned + mt.Activity
			}
		}

		for m := from; !tail.Before(m); m = m.Next() {
			mt := byMonth[m]
			carry += mt.Assigned + mt.Activity
			proj := model.CategoryProjection{
				CategoryID: categoryID,
				Month:      m,
				Assigned:   mt.Assigned,
				Activity:   mt.Activity,
				Available:  carry,
			}
			if err := s.UpsertProjections(ctx, budgetID, m, []model.CategoryProjection{proj}); err != nil {
				return common.WrapStorage("refresh projections", err)
			}
		}
	}
	return nil
}
