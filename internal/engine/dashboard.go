package engine

import (
	"context"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
)

// Aggregator produces the budget-level monthly dashboard: total inflow and
// outflow, plus the ready-to-assign figure.
type Aggregator struct {
	storage   service.Storage
	projector *Projector
}

// NewAggregator creates a dashboard aggregator sharing the projector's
// storage and cache.
func NewAggregator(storage service.Storage, projector *Projector) *Aggregator {
	return &Aggregator{storage: storage, projector: projector}
}

// Dashboard computes the month's dashboard for a budget. Ready-to-assign is
// the cash total across accounts as of month end minus the sum of every
// category's available, which keeps the whole budget zero-sum: money is
// either in an envelope or waiting to be assigned, never both and never
// neither.
func (a *Aggregator) Dashboard(ctx context.Context, budgetID string, month model.Month) (*model.Dashboard, error) {
	if _, err := a.storage.GetBudget(ctx, budgetID); err != nil {
		return nil, err
	}
	if month.IsZero() {
		return nil, common.NewValidationError("month is required")
	}

	inflow, outflow, err := a.storage.MonthFlows(ctx, budgetID, month)
	if err != nil {
		return nil, common.WrapStorage("sum month flows", err)
	}

	balances, err := a.storage.AccountBalances(ctx, budgetID, month)
	if err != nil {
		return nil, common.WrapStorage("sum account balances", err)
	}
	var cash int64
	for _, balance := range balances {
		cash += balance
	}

	projections, err := a.projector.MonthProjections(ctx, budgetID, month)
	if err != nil {
		return nil, err
	}
	var enveloped int64
	for _, proj := range projections {
		enveloped += proj.Available
	}

	return &model.Dashboard{
		Month:     month,
		Inflow:    inflow,
		Outflow:   outflow,
		Available: cash - enveloped,
	}, nil
}
