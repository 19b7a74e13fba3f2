// Package service defines the contracts between the engine and its stores.
package service

import (
	"context"
	"time"

	"github.com/envelopezero/engine/internal/model"
)

// TransactionFilter defines filtering options for ledger queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	AccountID     string
	CategoryID    string
	IncludeVoided bool
	Limit         int
	Offset        int
}

// LedgerEntry is one split together with the header fields the projection
// and dashboard computations need.
type LedgerEntry struct {
	Date          time.Time
	TransactionID string
	AccountID     string
	Split         model.Split
}

// MonthlyTotals aggregates one category's assigned and activity figures for
// a single month. The projection engine folds these in month order.
type MonthlyTotals struct {
	Month    model.Month
	Assigned int64
	Activity int64
}

// Storage defines the contract for the persistence layer: the ledger store,
// the assignment store, the entity stores, and the projection cache.
type Storage interface {
	// Budget operations. DeleteBudget cascades to everything the budget
	// owns; the coordinator requires explicit confirmation first when
	// transactions exist.
	CreateBudget(ctx context.Context, name, currencyCode string, isDefault bool) (*model.Budget, error)
	GetBudget(ctx context.Context, id string) (*model.Budget, error)
	GetDefaultBudget(ctx context.Context) (*model.Budget, error)
	ListBudgets(ctx context.Context) ([]model.Budget, error)
	SetDefaultBudget(ctx context.Context, id string) error
	DeleteBudget(ctx context.Context, id string) error
	CountTransactions(ctx context.Context, budgetID string) (int, error)

	// Account operations.
	CreateAccount(ctx context.Context, budgetID, name string) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, budgetID string) ([]model.Account, error)
	RenameAccount(ctx context.Context, id, name string) error
	DeleteAccount(ctx context.Context, id string) error
	// AccountBalances returns each account's signed balance from
	// non-voided splits dated through the end of the given month.
	AccountBalances(ctx context.Context, budgetID string, through model.Month) (map[string]int64, error)

	// Supercategory operations.
	CreateSupercategory(ctx context.Context, budgetID, name string) (*model.Supercategory, error)
	ListSupercategories(ctx context.Context, budgetID string) ([]model.Supercategory, error)
	RenameSupercategory(ctx context.Context, id, name string) error
	DeleteSupercategory(ctx context.Context, id string) error

	// Category operations. DeleteCategory refuses while any transaction
	// split or assignment delta references the category.
	CreateCategory(ctx context.Context, budgetID, supercategoryID, name string) (*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context, budgetID string) ([]model.Category, error)
	RenameCategory(ctx context.Context, id, name string) error
	DeleteCategory(ctx context.Context, id string) error

	// Ledger store. Mutations return the (category, month) pairs whose
	// activity changed, for projection invalidation. AmendTransaction
	// compares expectedRevision against the stored revision and fails
	// with ErrStaleRevision on mismatch. VoidTransaction is a soft
	// delete: the transaction stops contributing to activity but stays
	// resolvable by ID.
	AppendTransaction(ctx context.Context, txn *model.Transaction) ([]model.CategoryMonth, error)
	AmendTransaction(ctx context.Context, txn *model.Transaction, expectedRevision int64) ([]model.CategoryMonth, error)
	VoidTransaction(ctx context.Context, id string) ([]model.CategoryMonth, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, budgetID string, filter TransactionFilter) ([]model.Transaction, error)
	SplitsInRange(ctx context.Context, budgetID, categoryID string, from, to model.Month) ([]LedgerEntry, error)

	// Assignment store. ApplyDelta rejects zero deltas with ErrNoOpDelta.
	// Cumulative sums the deltas recorded for that exact month only.
	ApplyDelta(ctx context.Context, delta *model.AssignmentDelta) error
	Cumulative(ctx context.Context, categoryID string, month model.Month) (int64, error)
	ListAssignments(ctx context.Context, budgetID string, month model.Month) ([]model.AssignmentDelta, error)

	// Aggregates feeding the projection engine and dashboard.
	CategoryMonthlyTotals(ctx context.Context, budgetID, categoryID string, through model.Month) ([]MonthlyTotals, error)
	MonthFlows(ctx context.Context, budgetID string, month model.Month) (inflow, outflow int64, err error)

	// Projection cache. Cached rows are derived data: invalidate-on-write,
	// recomputed from the stores when stale. MarkProjectionsStale poisons a
	// category's rows from the given month onward, since carry-forward makes
	// every later month depend on the dirty one.
	GetCachedProjections(ctx context.Context, budgetID string, month model.Month) ([]model.CategoryProjection, bool, error)
	UpsertProjections(ctx context.Context, budgetID string, month model.Month, projections []model.CategoryProjection) error
	MarkProjectionsStale(ctx context.Context, categoryID string, from model.Month) error
	LatestCachedMonth(ctx context.Context, budgetID string) (model.Month, bool, error)

	// Database management.
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a storage transaction: every Storage operation plus commit/rollback.
// The coordinator runs each mutation and its projection recompute inside one
// Tx so readers never observe a half-applied mutation.
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}
