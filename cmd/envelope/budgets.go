package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/common"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage budgets",
		Long:  `Create, list, and delete budgets. Each budget has its own accounts, categories, and ledger.`,
	}

	cmd.AddCommand(createBudgetCmd())
	cmd.AddCommand(listBudgetsCmd())
	cmd.AddCommand(setDefaultBudgetCmd())
	cmd.AddCommand(deleteBudgetCmd())

	return cmd
}

func createBudgetCmd() *cobra.Command {
	var (
		currency   string
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := store.CreateBudget(ctx, args[0], strings.ToUpper(currency), setDefault)
			if err != nil {
				return fmt.Errorf("failed to create budget: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created budget %q (%s)", budget.Name, budget.ID)))
			if budget.IsDefault {
				fmt.Println(cli.SubtleStyle.Render("This is now the default budget."))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO 4217 currency code")
	cmd.Flags().BoolVar(&setDefault, "default", true, "make this the default budget")

	return cmd
}

func listBudgetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all budgets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budgets, err := store.ListBudgets(ctx)
			if err != nil {
				return fmt.Errorf("failed to list budgets: %w", err)
			}

			if len(budgets) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No budgets yet. Use 'envelope budgets create' to start."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "ID\tName\tCurrency\tDefault")
			for _, b := range budgets {
				marker := ""
				if b.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.CurrencyCode, marker)
			}
			return nil
		},
	}
}

func setDefaultBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <budget-id>",
		Short: "Make a budget the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetDefaultBudget(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to set default budget: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("Default budget updated."))
			return nil
		},
	}
}

func deleteBudgetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <budget-id>",
		Short: "Delete a budget and everything it owns",
		Long: `Delete a budget along with its accounts, categories, transactions, and
assignments. When the budget has recorded transactions you will be asked to
confirm, since the ledger history is destroyed with it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			budgetID := args[0]

			store, coordinator, err := initCoordinator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := store.GetBudget(ctx, budgetID)
			if err != nil {
				return fmt.Errorf("failed to load budget: %w", err)
			}

			confirmed := force
			if !confirmed {
				count, err := store.CountTransactions(ctx, budgetID)
				if err != nil {
					return fmt.Errorf("failed to count transactions: %w", err)
				}
				if count > 0 {
					confirmer := cli.NewConfirmer(os.Stdin, os.Stdout)
					question := fmt.Sprintf("Budget %q holds %d transactions. Delete it and all its history?", budget.Name, count)
					confirmed, err = confirmer.Confirm(ctx, question)
					if err != nil {
						return err
					}
					if !confirmed {
						fmt.Println(cli.SubtleStyle.Render("Aborted."))
						return nil
					}
				}
			}

			if err := coordinator.DeleteBudget(ctx, budgetID, confirmed); err != nil {
				if common.IsValidation(err) {
					return fmt.Errorf("%w (pass --force to skip confirmation)", err)
				}
				return fmt.Errorf("failed to delete budget: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Deleted budget %q.", budget.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "delete without confirmation")

	return cmd
}
