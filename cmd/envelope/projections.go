package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/model"
)

func projectionsCmd() *cobra.Command {
	var categoryRef string

	cmd := &cobra.Command{
		Use:   "projections [YYYY-MM]",
		Short: "Show each envelope's assigned, activity, and available figures",
		Long: `Show the budget's projections for a month: what was assigned to each
envelope, what was spent or received, and what is available. Unspent money
carries forward month to month, and overspending carries forward as a
negative balance until it is covered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, coordinator, err := initCoordinator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			month := model.MonthOf(time.Now())
			if len(args) == 1 {
				month, err = model.ParseMonth(args[0])
				if err != nil {
					return err
				}
			}

			names, err := categoryNames(ctx, store, budget.ID)
			if err != nil {
				return err
			}

			if categoryRef != "" {
				category, err := resolveCategory(ctx, store, budget.ID, categoryRef)
				if err != nil {
					return err
				}
				proj, err := coordinator.CategoryProjection(ctx, budget.ID, category.ID, month)
				if err != nil {
					return fmt.Errorf("failed to compute projection: %w", err)
				}
				fmt.Println(cli.RenderProjections(names, []model.CategoryProjection{*proj}))
				return nil
			}

			projections, err := coordinator.MonthProjections(ctx, budget.ID, month)
			if err != nil {
				return fmt.Errorf("failed to compute projections: %w", err)
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("%s — %s", budget.Name, month)))
			fmt.Println(cli.RenderProjections(names, projections))
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryRef, "category", "", "show a single category")

	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard [YYYY-MM]",
		Short: "Show the month's inflow, outflow, and ready-to-assign pool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, coordinator, err := initCoordinator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			month := model.MonthOf(time.Now())
			if len(args) == 1 {
				month, err = model.ParseMonth(args[0])
				if err != nil {
					return err
				}
			}

			dash, err := coordinator.Dashboard(ctx, budget.ID, month)
			if err != nil {
				return fmt.Errorf("failed to compute dashboard: %w", err)
			}

			fmt.Println(cli.RenderDashboard(budget, dash))
			return nil
		},
	}
}
