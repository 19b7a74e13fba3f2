package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
)

// maxConcurrentReaders bounds readers per budget. A writer takes the full
// weight, so it waits for in-flight readers to drain and blocks new ones.
const maxConcurrentReaders = 64

// DefaultLockTimeout bounds how long a caller waits for a budget's mutation
// section before giving up with ErrBudgetBusy.
const DefaultLockTimeout = 5 * time.Second

// Coordinator linearizes mutations per budget and keeps the projection cache
// consistent with the ledger. Mutations to the same budget run one at a
// time; different budgets proceed fully in parallel. Each mutation persists
// and recomputes inside a single storage transaction, so readers observe
// either none of it or all of it.
type Coordinator struct {
	storage     service.Storage
	projector   *Projector
	aggregator  *Aggregator
	budgets     map[string]*semaphore.Weighted
	mu          sync.Mutex
	lockTimeout time.Duration
}

// NewCoordinator creates a coordinator over the given storage.
func NewCoordinator(storage service.Storage) *Coordinator {
	projector := NewProjector(storage)
	return &Coordinator{
		storage:     storage,
		projector:   projector,
		aggregator:  NewAggregator(storage, projector),
		budgets:     make(map[string]*semaphore.Weighted),
		lockTimeout: DefaultLockTimeout,
	}
}

// SetLockTimeout overrides the budget lock acquisition timeout.
func (c *Coordinator) SetLockTimeout(d time.Duration) {
	c.lockTimeout = d
}

// Storage exposes the underlying storage for read-only lookups that do not
// touch the ledger or the projection cache.
func (c *Coordinator) Storage() service.Storage {
	return c.storage
}

func (c *Coordinator) sem(budgetID string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.budgets[budgetID]
	if !ok {
		s = semaphore.NewWeighted(maxConcurrentReaders)
		c.budgets[budgetID] = s
	}
	return s
}

func (c *Coordinator) acquire(ctx context.Context, budgetID string, weight int64) (*semaphore.Weighted, error) {
	s := c.sem(budgetID)
	acquireCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()
	if err := s.Acquire(acquireCtx, weight); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("budget %s: %w", budgetID, common.ErrBudgetBusy)
	}
	return s, nil
}

// mutate runs fn and the projection recompute it dirties inside one storage
// transaction, under the budget's exclusive section. Any failure rolls the
// whole mutation back; the affected cache rows are then marked stale as a
// precaution, since a failed commit leaves their freshness unknowable.
func (c *Coordinator) mutate(ctx context.Context, budgetID string, fn func(tx service.Tx) ([]model.CategoryMonth, error)) error {
	s, err := c.acquire(ctx, budgetID, maxConcurrentReaders)
	if err != nil {
		return err
	}
	defer s.Release(maxConcurrentReaders)

	tx, err := c.storage.BeginTx(ctx)
	if err != nil {
		return common.WrapStorage("begin mutation", err)
	}

	dirty, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "budget", budgetID, "error", rbErr)
		}
		return err
	}

	if err := recomputeProjections(ctx, tx, budgetID, dirty); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "budget", budgetID, "error", rbErr)
		}
		c.markStale(ctx, dirty)
		return err
	}

	if err := tx.Commit(); err != nil {
		c.markStale(ctx, dirty)
		return common.WrapStorage("commit mutation", err)
	}
	return nil
}

func (c *Coordinator) markStale(ctx context.Context, dirty []model.CategoryMonth) {
	ctx = context.WithoutCancel(ctx)
	for _, cm := range dirty {
		if err := c.storage.MarkProjectionsStale(ctx, cm.CategoryID, cm.Month); err != nil {
			slog.Error("failed to mark projections stale",
				"category", cm.CategoryID,
				"month", cm.Month.String(),
				"error", err)
		}
	}
}

// AppendTransaction records a transaction and refreshes the projections it
// touches.
func (c *Coordinator) AppendTransaction(ctx context.Context, txn *model.Transaction) error {
	if txn == nil {
		return common.NewValidationError("transaction is required")
	}
	return c.mutate(ctx, txn.BudgetID, func(tx service.Tx) ([]model.CategoryMonth, error) {
		return tx.AppendTransaction(ctx, txn)
	})
}

// AmendTransaction replaces a transaction's content, guarded by the caller's
// expected revision.
func (c *Coordinator) AmendTransaction(ctx context.Context, txn *model.Transaction, expectedRevision int64) error {
	if txn == nil {
		return common.NewValidationError("transaction is required")
	}
	return c.mutate(ctx, txn.BudgetID, func(tx service.Tx) ([]model.CategoryMonth, error) {
		return tx.AmendTransaction(ctx, txn, expectedRevision)
	})
}

// VoidTransaction soft-deletes a transaction in the given budget.
func (c *Coordinator) VoidTransaction(ctx context.Context, budgetID, transactionID string) error {
	return c.mutate(ctx, budgetID, func(tx service.Tx) ([]model.CategoryMonth, error) {
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if txn.BudgetID != budgetID {
			return nil, fmt.Errorf("transaction %s in budget %s: %w", transactionID, budgetID, common.ErrNotFound)
		}
		return tx.VoidTransaction(ctx, transactionID)
	})
}

// Assign applies a signed assignment delta to a category-month.
func (c *Coordinator) Assign(ctx context.Context, budgetID, categoryID string, month model.Month, delta int64) error {
	return c.mutate(ctx, budgetID, func(tx service.Tx) ([]model.CategoryMonth, error) {
		err := tx.ApplyDelta(ctx, &model.AssignmentDelta{
			BudgetID:   budgetID,
			CategoryID: categoryID,
			Month:      month,
			Amount:     delta,
		})
		if err != nil {
			return nil, err
		}
		return []model.CategoryMonth{{CategoryID: categoryID, Month: month}}, nil
	})
}

// SetAssigned moves a category-month's assigned figure to an absolute
// target by translating it into a delta against the current cumulative.
// Storing the delta rather than the target means two concurrent editors
// adjust rather than overwrite each other. Returns the delta applied;
// a target equal to the current figure is ErrNoOpDelta.
func (c *Coordinator) SetAssigned(ctx context.Context, budgetID, categoryID string, month model.Month, target int64) (int64, error) {
	var applied int64
	err := c.mutate(ctx, budgetID, func(tx service.Tx) ([]model.CategoryMonth, error) {
		current, err := tx.Cumulative(ctx, categoryID, month)
		if err != nil {
			return nil, err
		}
		delta := target - current
		if delta == 0 {
			return nil, common.ErrNoOpDelta
		}
		err = tx.ApplyDelta(ctx, &model.AssignmentDelta{
			BudgetID:   budgetID,
			CategoryID: categoryID,
			Month:      month,
			Amount:     delta,
		})
		if err != nil {
			return nil, err
		}
		applied = delta
		return []model.CategoryMonth{{CategoryID: categoryID, Month: month}}, nil
	})
	return applied, err
}

// DeleteBudget removes a budget and everything it owns. A budget that still
// has transactions requires the caller's explicit confirmation.
func (c *Coordinator) DeleteBudget(ctx context.Context, budgetID string, confirmed bool) error {
	count, err := c.storage.CountTransactions(ctx, budgetID)
	if err != nil {
		return common.WrapStorage("count transactions", err)
	}
	if count > 0 && !confirmed {
		return common.NewValidationError("budget has %d transactions; deletion requires confirmation", count)
	}

	s, err := c.acquire(ctx, budgetID, maxConcurrentReaders)
	if err != nil {
		return err
	}
	defer s.Release(maxConcurrentReaders)

	if err := c.storage.DeleteBudget(ctx, budgetID); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.budgets, budgetID)
	c.mu.Unlock()
	return nil
}

// MonthProjections reads a budget's projections for one month. Readers run
// concurrently with each other but never interleave with a mutation.
func (c *Coordinator) MonthProjections(ctx context.Context, budgetID string, month model.Month) ([]model.CategoryProjection, error) {
	s, err := c.acquire(ctx, budgetID, 1)
	if err != nil {
		return nil, err
	}
	defer s.Release(1)
	return c.projector.MonthProjections(ctx, budgetID, month)
}

// CategoryProjection reads one category's projection for one month.
func (c *Coordinator) CategoryProjection(ctx context.Context, budgetID, categoryID string, month model.Month) (*model.CategoryProjection, error) {
	s, err := c.acquire(ctx, budgetID, 1)
	if err != nil {
		return nil, err
	}
	defer s.Release(1)
	return c.projector.CategoryProjection(ctx, budgetID, categoryID, month)
}

// Dashboard reads a budget's monthly dashboard.
func (c *Coordinator) Dashboard(ctx context.Context, budgetID string, month model.Month) (*model.Dashboard, error) {
	s, err := c.acquire(ctx, budgetID, 1)
	if err != nil {
		return nil, err
	}
	defer s.Release(1)
	return c.aggregator.Dashboard(ctx, budgetID, month)
}

// IsConflict reports whether err is a concurrency conflict the caller should
// resolve by re-fetching and retrying.
func IsConflict(err error) bool {
	return errors.Is(err, common.ErrStaleRevision) || errors.Is(err, common.ErrBudgetBusy)
}
