package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/storage"
)

func setupCoordinator(t *testing.T) (*Coordinator, *storage.SQLiteStorage) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	return NewCoordinator(store), store
}

func seedBudget(t *testing.T, store *storage.SQLiteStorage) (budget *model.Budget, account *model.Account, category *model.Category) {
	t.Helper()
	ctx := context.Background()

	budget, err := store.CreateBudget(ctx, "Test Budget", "USD", true)
	require.NoError(t, err)
	account, err = store.CreateAccount(ctx, budget.ID, "Checking")
	require.NoError(t, err)
	sc, err := store.CreateSupercategory(ctx, budget.ID, "Essentials")
	require.NoError(t, err)
	category, err = store.CreateCategory(ctx, budget.ID, sc.ID, "Groceries")
	require.NoError(t, err)
	return budget, account, category
}

func month(s string) model.Month {
	m, err := model.ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func date(year int, mon time.Month, day int) time.Time {
	return time.Date(year, mon, day, 12, 0, 0, 0, time.UTC)
}

// The worked example: assign, spend, and watch the remainder carry forward.
func TestAssignSpendCarryForward(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	jan, feb := month("2024-01"), month("2024-02")

	// No history yet: everything is zero.
	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 0, proj.Assigned)
	assert.EqualValues(t, 0, proj.Activity)
	assert.EqualValues(t, 0, proj.Available)

	// Assign 5000 for january.
	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, jan, 5000))
	proj, err = coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, proj.Assigned)
	assert.EqualValues(t, 5000, proj.Available)

	// Spend 2000 mid-month.
	require.NoError(t, coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 15),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 2000}},
	}))
	proj, err = coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, proj.Assigned)
	assert.EqualValues(t, -2000, proj.Activity)
	assert.EqualValues(t, 3000, proj.Available)

	// February: nothing new, the 3000 carries.
	proj, err = coord.CategoryProjection(ctx, budget.ID, category.ID, feb)
	require.NoError(t, err)
	assert.EqualValues(t, 0, proj.Assigned)
	assert.EqualValues(t, 0, proj.Activity)
	assert.EqualValues(t, 3000, proj.Available)
}

// Overspending carries as debt: covering it next month lands at exactly zero.
func TestOverspendCoveredNextMonth(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	jan, feb := month("2024-01"), month("2024-02")

	require.NoError(t, coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 10),
		Payee:     "Mechanic",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 1500}},
	}))

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, -1500, proj.Available)

	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, feb, 1500))
	proj, err = coord.CategoryProjection(ctx, budget.ID, category.ID, feb)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, proj.Assigned)
	assert.EqualValues(t, 0, proj.Available)
}

func TestRolloverLaw(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, month("2024-03"), 7500))
	require.NoError(t, coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.March, 20),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 1234}},
	}))

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, month("2024-03"))
	require.NoError(t, err)
	carried := proj.Available

	// Quiet months repeat the figure indefinitely.
	for _, m := range []model.Month{month("2024-04"), month("2024-05"), month("2024-09")} {
		proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, m)
		require.NoError(t, err)
		assert.Equal(t, carried, proj.Available, "month %s", m)
	}
}

func TestAssignmentAdditivity(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, category := seedBudget(t, store)

	jan := month("2024-01")
	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, jan, 3000))
	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, jan, -1200))

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 1800, proj.Assigned)

	// Same deltas, opposite order, on a sibling category.
	sc, err := store.CreateSupercategory(ctx, budget.ID, "Other")
	require.NoError(t, err)
	sibling, err := store.CreateCategory(ctx, budget.ID, sc.ID, "Sibling")
	require.NoError(t, err)

	require.NoError(t, coord.Assign(ctx, budget.ID, sibling.ID, jan, -1200))
	require.NoError(t, coord.Assign(ctx, budget.ID, sibling.ID, jan, 3000))

	proj, err = coord.CategoryProjection(ctx, budget.ID, sibling.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 1800, proj.Assigned)
}

func TestZeroDeltaIsRejected(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, category := seedBudget(t, store)

	jan := month("2024-01")
	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, jan, 4000))

	err := coord.Assign(ctx, budget.ID, category.ID, jan, 0)
	assert.ErrorIs(t, err, common.ErrNoOpDelta)

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 4000, proj.Assigned, "rejected delta changed nothing")
}

func TestSetAssignedTranslatesToDelta(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, category := seedBudget(t, store)

	jan := month("2024-01")
	applied, err := coord.SetAssigned(ctx, budget.ID, category.ID, jan, 5000)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, applied)

	applied, err = coord.SetAssigned(ctx, budget.ID, category.ID, jan, 3500)
	require.NoError(t, err)
	assert.EqualValues(t, -1500, applied)

	_, err = coord.SetAssigned(ctx, budget.ID, category.ID, jan, 3500)
	assert.ErrorIs(t, err, common.ErrNoOpDelta)

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 3500, proj.Assigned)
}

func TestZeroSumInvariant(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, grocery := seedBudget(t, store)

	sc, err := store.CreateSupercategory(ctx, budget.ID, "Fun")
	require.NoError(t, err)
	dining, err := store.CreateCategory(ctx, budget.ID, sc.ID, "Dining")
	require.NoError(t, err)

	jan := month("2024-01")

	// Paycheck lands, money gets enveloped, some gets spent.
	require.NoError(t, coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 1),
		Payee:     "Employer",
		Splits:    []model.Split{{CategoryID: grocery.ID, Inflow: 100000}},
	}))
	require.NoError(t, coord.Assign(ctx, budget.ID, dining.ID, jan, 20000))
	require.NoError(t, coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 18),
		Payee:     "Bistro",
		Splits:    []model.Split{{CategoryID: dining.ID, Outflow: 4500}},
	}))

	dash, err := coord.Dashboard(ctx, budget.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, 100000, dash.Inflow)
	assert.EqualValues(t, 4500, dash.Outflow)

	balances, err := store.AccountBalances(ctx, budget.ID, jan)
	require.NoError(t, err)
	var cash int64
	for _, b := range balances {
		cash += b
	}
	projections, err := coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	var enveloped int64
	for _, p := range projections {
		enveloped += p.Available
	}
	assert.Equal(t, cash-enveloped, dash.Available, "every cent is enveloped or ready to assign")

	// The invariant survives a later mutation and a later month.
	require.NoError(t, coord.Assign(ctx, budget.ID, grocery.ID, month("2024-02"), 10000))
	feb := month("2024-02")
	dash, err = coord.Dashboard(ctx, budget.ID, feb)
	require.NoError(t, err)

	balances, err = store.AccountBalances(ctx, budget.ID, feb)
	require.NoError(t, err)
	cash = 0
	for _, b := range balances {
		cash += b
	}
	projections, err = coord.MonthProjections(ctx, budget.ID, feb)
	require.NoError(t, err)
	enveloped = 0
	for _, p := range projections {
		enveloped += p.Available
	}
	assert.Equal(t, cash-enveloped, dash.Available)
}

func TestVoidRestoresAvailable(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	jan := month("2024-01")
	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, jan, 5000))

	txn := &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 15),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 2000}},
	}
	require.NoError(t, coord.AppendTransaction(ctx, txn))

	// Materialize the cache, then void and observe the refresh.
	projections, err := coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.EqualValues(t, 3000, projections[0].Available)

	require.NoError(t, coord.VoidTransaction(ctx, budget.ID, txn.ID))

	projections, err = coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.EqualValues(t, 0, projections[0].Activity)
	assert.EqualValues(t, 5000, projections[0].Available)

	// The voided transaction is still resolvable for audit.
	got, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, got.Voided)
}

func TestAmendRefreshesBothMonths(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	jan, feb := month("2024-01"), month("2024-02")

	txn := &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 15),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 2000}},
	}
	require.NoError(t, coord.AppendTransaction(ctx, txn))

	// Cache both months.
	_, err := coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	_, err = coord.MonthProjections(ctx, budget.ID, feb)
	require.NoError(t, err)

	// Move the transaction into february with a new amount.
	moved := *txn
	moved.Date = date(2024, time.February, 2)
	moved.Splits = []model.Split{{CategoryID: category.ID, Outflow: 2500}}
	require.NoError(t, coord.AmendTransaction(ctx, &moved, 1))

	projections, err := coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.EqualValues(t, 0, projections[0].Activity, "january no longer carries the spend")

	projections, err = coord.MonthProjections(ctx, budget.ID, feb)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.EqualValues(t, -2500, projections[0].Activity)
	assert.EqualValues(t, -2500, projections[0].Available)
}

func TestStaleRevisionIsConflict(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	txn := &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 15),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 2000}},
	}
	require.NoError(t, coord.AppendTransaction(ctx, txn))

	first := *txn
	first.Payee = "First editor"
	require.NoError(t, coord.AmendTransaction(ctx, &first, 1))

	second := *txn
	second.Payee = "Second editor"
	err := coord.AmendTransaction(ctx, &second, 1)
	assert.ErrorIs(t, err, common.ErrStaleRevision)
	assert.True(t, IsConflict(err))
}

func TestConcurrentDeltasAreNotLost(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, category := seedBudget(t, store)

	jan := month("2024-01")
	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				errs <- coord.Assign(ctx, budget.ID, category.ID, jan, 100)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, jan)
	require.NoError(t, err)
	assert.EqualValues(t, workers*perWorker*100, proj.Assigned)
}

func TestDeleteBudgetRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	require.NoError(t, coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 15),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Outflow: 2000}},
	}))

	err := coord.DeleteBudget(ctx, budget.ID, false)
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))

	require.NoError(t, coord.DeleteBudget(ctx, budget.ID, true))
	_, err = store.GetBudget(ctx, budget.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProjectionUnknownOrForeignCategory(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, _ := seedBudget(t, store)

	_, err := coord.CategoryProjection(ctx, budget.ID, "ghost", month("2024-01"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	other, err := store.CreateBudget(ctx, "Other", "USD", false)
	require.NoError(t, err)
	sc, err := store.CreateSupercategory(ctx, other.ID, "Misc")
	require.NoError(t, err)
	foreign, err := store.CreateCategory(ctx, other.ID, sc.ID, "Foreign")
	require.NoError(t, err)

	_, err = coord.CategoryProjection(ctx, budget.ID, foreign.ID, month("2024-01"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMonthBeforeHistoryIsAllZero(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, category := seedBudget(t, store)

	require.NoError(t, coord.Assign(ctx, budget.ID, category.ID, month("2024-06"), 5000))

	proj, err := coord.CategoryProjection(ctx, budget.ID, category.ID, month("2023-01"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, proj.Assigned)
	assert.EqualValues(t, 0, proj.Activity)
	assert.EqualValues(t, 0, proj.Available)
}

func TestMonthProjectionsFollowRosterChanges(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, _, groceries := seedBudget(t, store)

	jan := month("2024-01")

	// Materialize the month's cache with the original roster.
	projections, err := coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.Equal(t, groceries.ID, projections[0].CategoryID)

	// Swap the roster: Groceries has no history, so it can be removed.
	require.NoError(t, store.DeleteCategory(ctx, groceries.ID))
	sc, err := store.CreateSupercategory(ctx, budget.ID, "Fun")
	require.NoError(t, err)
	travel, err := store.CreateCategory(ctx, budget.ID, sc.ID, "Travel")
	require.NoError(t, err)

	// The listing reflects the live roster, not the stale cache.
	projections, err = coord.MonthProjections(ctx, budget.ID, jan)
	require.NoError(t, err)
	require.Len(t, projections, 1)
	assert.Equal(t, travel.ID, projections[0].CategoryID)

	removedIDs := make([]string, 0, len(projections))
	for _, proj := range projections {
		removedIDs = append(removedIDs, proj.CategoryID)
	}
	assert.NotContains(t, removedIDs, groceries.ID)
}

func TestSplitBothSidesRejected(t *testing.T) {
	ctx := context.Background()
	coord, store := setupCoordinator(t)
	budget, account, category := seedBudget(t, store)

	err := coord.AppendTransaction(ctx, &model.Transaction{
		ID:        model.NewID(),
		BudgetID:  budget.ID,
		AccountID: account.ID,
		Date:      date(2024, time.January, 15),
		Payee:     "Grocer",
		Splits:    []model.Split{{CategoryID: category.ID, Inflow: 100, Outflow: 100}},
	})
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}
