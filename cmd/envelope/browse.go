package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/tui"
)

func browseCmd() *cobra.Command {
	var monthStr string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the budget month by month",
		Long:  `Open an interactive view of the budget: one month's envelopes at a time, with the dashboard underneath. Use the arrow keys to move between months.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			if monthStr != "" {
				month, err = model.ParseMonth(monthStr)
				if err != nil {
					return err
				}
			}

			return tui.Run(ctx, coordinator, budget, month)
		},
	}

	cmd.Flags().StringVar(&monthStr, "month", "", "month to open as YYYY-MM (default: current month)")

	return cmd
}
