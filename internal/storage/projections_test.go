package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envelopezero/engine/internal/model"
)

func TestCategoryMonthlyTotals(t *testing.T) {
	ctx := context.Background()

	store, cleanup := createTestStorage(t)
	defer cleanup()
	budget, account, category := seedBudget(t, store)

	require.NoError(t, store.ApplyDelta(ctx, &model.AssignmentDelta{
		BudgetID: budget.ID, CategoryID: category.ID, Month: month("2026-01"), Amount: 5000,
	}))
	require.NoError(t, store.ApplyDelta(ctx, &model.AssignmentDelta{
		BudgetID: budget.ID, CategoryID: category.ID, Month: month("2026-03"), Amount: 2000,
	}))

	_, err := store.AppendTransaction(ctx, &model.Transaction{
		ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
		Date: date(2026, time.January, 10), Payee: "Grocer",
		Splits: []model.Split{{CategoryID: category.ID, Outflow: 2000}},
	})
	require.NoError(t, err)
	voided := &model.Transaction{
		ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
		Date: date(2026, time.February, 10), Payee: "Mistake",
		Splits: []model.Split{{CategoryID: category.ID, Outflow: 999}},
	}
	_, err = store.AppendTransaction(ctx, voided)
	require.NoError(t, err)
	_, err = store.VoidTransaction(ctx, voided.ID)
	require.NoError(t, err)

	totals, err := store.CategoryMonthlyTotals(ctx, budget.ID, category.ID, month("2026-03"))
	require.NoError(t, err)

	// January has both a delta and activity; february's only transaction is
	// voided so the month vanishes; march has a delta alone.
	require.Len(t, totals, 2)
	assert.Equal(t, month("2026-01"), totals[0].Month)
	assert.EqualValues(t, 5000, totals[0].Assigned)
	assert.EqualValues(t, -2000, totals[0].Activity)
	assert.Equal(t, month("2026-03"), totals[1].Month)
	assert.EqualValues(t, 2000, totals[1].Assigned)
	assert.EqualValues(t, 0, totals[1].Activity)

	// Truncating at january hides the march delta.
	totals, err = store.CategoryMonthlyTotals(ctx, budget.ID, category.ID, month("2026-01"))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, month("2026-01"), totals[0].Month)
}

func TestMonthFlows(t *testing.T) {
	ctx := context.Background()

	store, cleanup := createTestStorage(t)
	defer cleanup()
	budget, account, category := seedBudget(t, store)

	for _, txn := range []model.Transaction{
		{
			ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
			Date: date(2026, time.May, 1), Payee: "Employer",
			Splits: []model.Split{{CategoryID: category.ID, Inflow: 300000}},
		},
		{
			ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
			Date: date(2026, time.May, 14), Payee: "Grocer",
			Splits: []model.Split{{CategoryID: category.ID, Outflow: 12000}},
		},
		{
			ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
			Date: date(2026, time.June, 1), Payee: "Next month",
			Splits: []model.Split{{CategoryID: category.ID, Outflow: 500}},
		},
	} {
		txn := txn
		_, err := store.AppendTransaction(ctx, &txn)
		require.NoError(t, err)
	}

	inflow, outflow, err := store.MonthFlows(ctx, budget.ID, month("2026-05"))
	require.NoError(t, err)
	assert.EqualValues(t, 300000, inflow)
	assert.EqualValues(t, 12000, outflow)

	inflow, outflow, err = store.MonthFlows(ctx, budget.ID, month("2026-04"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, inflow)
	assert.EqualValues(t, 0, outflow)
}

func TestProjectionCache(t *testing.T) {
	ctx := context.Background()

	store, cleanup := createTestStorage(t)
	defer cleanup()
	budget, _, category := seedBudget(t, store)

	march := month("2026-03")

	t.Run("empty cache misses", func(t *testing.T) {
		_, fresh, err := store.GetCachedProjections(ctx, budget.ID, march)
		require.NoError(t, err)
		assert.False(t, fresh)

		_, ok, err := store.LatestCachedMonth(ctx, budget.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("upsert then hit", func(t *testing.T) {
		require.NoError(t, store.UpsertProjections(ctx, budget.ID, march, []model.CategoryProjection{
			{CategoryID: category.ID, Month: march, Assigned: 5000, Activity: -2000, Available: 3000},
		}))

		projections, fresh, err := store.GetCachedProjections(ctx, budget.ID, march)
		require.NoError(t, err)
		assert.True(t, fresh)
		require.Len(t, projections, 1)
		assert.EqualValues(t, 3000, projections[0].Available)

		latest, ok, err := store.LatestCachedMonth(ctx, budget.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, march, latest)
	})

	t.Run("stale marking poisons the month and everything after", func(t *testing.T) {
		april := month("2026-04")
		require.NoError(t, store.UpsertProjections(ctx, budget.ID, april, []model.CategoryProjection{
			{CategoryID: category.ID, Month: april, Assigned: 0, Activity: 0, Available: 3000},
		}))

		require.NoError(t, store.MarkProjectionsStale(ctx, category.ID, march))

		_, fresh, err := store.GetCachedProjections(ctx, budget.ID, march)
		require.NoError(t, err)
		assert.False(t, fresh)
		_, fresh, err = store.GetCachedProjections(ctx, budget.ID, april)
		require.NoError(t, err)
		assert.False(t, fresh)

		// Re-upserting clears the flag.
		require.NoError(t, store.UpsertProjections(ctx, budget.ID, march, []model.CategoryProjection{
			{CategoryID: category.ID, Month: march, Assigned: 5000, Activity: -2000, Available: 3000},
		}))
		_, fresh, err = store.GetCachedProjections(ctx, budget.ID, march)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("earlier months stay fresh", func(t *testing.T) {
		feb := month("2026-02")
		require.NoError(t, store.UpsertProjections(ctx, budget.ID, feb, []model.CategoryProjection{
			{CategoryID: category.ID, Month: feb, Assigned: 100, Activity: 0, Available: 100},
		}))
		require.NoError(t, store.MarkProjectionsStale(ctx, category.ID, month("2026-03")))

		_, fresh, err := store.GetCachedProjections(ctx, budget.ID, feb)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("deleted category rows are not served", func(t *testing.T) {
		// The seeded category has no ledger history, so it can be removed;
		// its cached rows must disappear from reads with it.
		require.NoError(t, store.DeleteCategory(ctx, category.ID))

		projections, fresh, err := store.GetCachedProjections(ctx, budget.ID, march)
		require.NoError(t, err)
		assert.False(t, fresh)
		assert.Empty(t, projections)
	})
}

func TestTransactionsInOneStorageTx(t *testing.T) {
	ctx := context.Background()

	store, cleanup := createTestStorage(t)
	defer cleanup()
	budget, account, category := seedBudget(t, store)

	t.Run("commit makes writes visible", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.AppendTransaction(ctx, &model.Transaction{
			ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
			Date: date(2026, time.July, 1), Payee: "Committed",
			Splits: []model.Split{{CategoryID: category.ID, Outflow: 100}},
		})
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		count, err := store.CountTransactions(ctx, budget.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.AppendTransaction(ctx, &model.Transaction{
			ID: model.NewID(), BudgetID: budget.ID, AccountID: account.ID,
			Date: date(2026, time.July, 2), Payee: "Discarded",
			Splits: []model.Split{{CategoryID: category.ID, Outflow: 100}},
		})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		count, err := store.CountTransactions(ctx, budget.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "only the committed transaction remains")
	})
}
