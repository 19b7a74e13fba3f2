package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/model"
)

func assignCmd() *cobra.Command {
	var (
		monthStr string
		setTo    string
	)

	cmd := &cobra.Command{
		Use:   "assign <category> [amount]",
		Short: "Move money into or out of a category envelope",
		Long: `Assign money to a category for a month. A positive amount moves money
from the ready-to-assign pool into the envelope; a negative amount pulls it
back out. With --set the envelope's assigned figure for the month is moved to
an absolute target instead.

Examples:
  # Put $500 into Groceries this month
  envelope assign Groceries 500

  # Pull $50 back out
  envelope assign Groceries -- -50

  # Make March's assignment exactly $350
  envelope assign Groceries --month 2024-03 --set 350`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if (len(args) == 2) == (setTo != "") {
				return fmt.Errorf("pass exactly one of an amount or --set")
			}

			store, coordinator, err := initCoordinator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			category, err := resolveCategory(ctx, store, budget.ID, args[0])
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

			if setTo != "" {
				target, err := parseCents(setTo)
				if err != nil {
					return err
				}
				applied, err := coordinator.SetAssigned(ctx, budget.ID, category.ID, month, target)
				if err != nil {
					return fmt.Errorf("failed to set assignment: %w", err)
				}
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
					"Set %s for %s to %s (moved %s).",
					category.Name, month, cli.FormatCents(target), cli.StyleAmount(applied))))
				return nil
			}

			delta, err := parseCents(args[1])
			if err != nil {
				return err
			}
			if err := coordinator.Assign(ctx, budget.ID, category.ID, month, delta); err != nil {
				return fmt.Errorf("failed to assign: %w", err)
			}

			verb := "Assigned"
			if delta < 0 {
				verb = "Unassigned"
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"%s %s for %s in %s.", verb, cli.FormatCents(delta), category.Name, month)))
			return nil
		},
	}

	cmd.Flags().StringVar(&monthStr, "month", "", "month as YYYY-MM (default: current month)")
	cmd.Flags().StringVar(&setTo, "set", "", "set the month's assigned figure to this absolute amount")

	return cmd
}

func assignmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignments [YYYY-MM]",
		Short: "List the month's assignment history",
		Long:  `List every assignment recorded for a month, in the order it happened. Assignments are append-only; edits show up as compensating entries, never as rewrites.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
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

			deltas, err := store.ListAssignments(ctx, budget.ID, month)
			if err != nil {
				return fmt.Errorf("failed to list assignments: %w", err)
			}
			if len(deltas) == 0 {
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("No assignments in %s.", month)))
				return nil
			}

			names, err := categoryNames(ctx, store, budget.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "When\tCategory\tAmount")
			for _, delta := range deltas {
				name := names[delta.CategoryID]
				if name == "" {
					name = delta.CategoryID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					delta.CreatedAt.Format("2006-01-02 15:04"), name, cli.StyleAmount(delta.Amount))
			}
			return nil
		},
	}
}
