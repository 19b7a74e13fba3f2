package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

func TestApplyDelta(t *testing.T) {
	ctx := context.Background()

	t.Run("deltas accumulate per month", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()
		budget, _, category := seedBudget(t, store)

		march := month("2026-03")
		for _, amount := range []int64{5000, -1500, 300} {
			require.NoError(t, store.ApplyDelta(ctx, &model.AssignmentDelta{
				BudgetID:   budget.ID,
				CategoryID: category.ID,
				Month:      march,
				Amount:     amount,
			}))
		}

		sum, err := store.Cumulative(ctx, category.ID, march)
		require.NoError(t, err)
		assert.EqualValues(t, 3800, sum)

		deltas, err := store.ListAssignments(ctx, budget.ID, march)
		require.NoError(t, err)
		require.Len(t, deltas, 3)
		assert.EqualValues(t, 5000, deltas[0].Amount)
		assert.EqualValues(t, -1500, deltas[1].Amount)
	})

	t.Run("months are independent", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()
		budget, _, category := seedBudget(t, store)

		require.NoError(t, store.ApplyDelta(ctx, &model.AssignmentDelta{
			BudgetID:   budget.ID,
			CategoryID: category.ID,
			Month:      month("2026-03"),
			Amount:     5000,
		}))

		sum, err := store.Cumulative(ctx, category.ID, month("2026-04"))
		require.NoError(t, err)
		assert.EqualValues(t, 0, sum, "a march delta never bleeds into april")
	})

	t.Run("zero amount is rejected", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()
		budget, _, category := seedBudget(t, store)

		err := store.ApplyDelta(ctx, &model.AssignmentDelta{
			BudgetID:   budget.ID,
			CategoryID: category.ID,
			Month:      month("2026-03"),
			Amount:     0,
		})
		assert.ErrorIs(t, err, common.ErrNoOpDelta)
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()
		budget, _, _ := seedBudget(t, store)

		err := store.ApplyDelta(ctx, &model.AssignmentDelta{
			BudgetID:   budget.ID,
			CategoryID: "ghost",
			Month:      month("2026-03"),
			Amount:     100,
		})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("category from another budget is rejected", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()
		budget, _, _ := seedBudget(t, store)

		other, err := store.CreateBudget(ctx, "Other", "USD", false)
		require.NoError(t, err)
		sc, err := store.CreateSupercategory(ctx, other.ID, "Misc")
		require.NoError(t, err)
		cat, err := store.CreateCategory(ctx, other.ID, sc.ID, "Elsewhere")
		require.NoError(t, err)

		err = store.ApplyDelta(ctx, &model.AssignmentDelta{
			BudgetID:   budget.ID,
			CategoryID: cat.ID,
			Month:      month("2026-03"),
			Amount:     100,
		})
		require.Error(t, err)
		assert.True(t, common.IsValidation(err))
	})
}
