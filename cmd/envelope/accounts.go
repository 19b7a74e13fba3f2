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

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts",
		Long:  `Add, list, rename, and remove accounts. Balances are derived from the ledger, never stored.`,
	}

	cmd.AddCommand(addAccountCmd())
	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(renameAccountCmd())
	cmd.AddCommand(removeAccountCmd())

	return cmd
}

func addAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add an account to the budget",
		Args:  cobra.ExactArgs(1),
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

			account, err := store.CreateAccount(ctx, budget.ID, args[0])
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created account %q (%s)", account.Name, account.ID)))
			return nil
		},
	}
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with current balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			accounts, err := store.ListAccounts(ctx, budget.ID)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No accounts yet. Use 'envelope accounts add' to create one."))
				return nil
			}

			balances, err := store.AccountBalances(ctx, budget.ID, model.MonthOf(time.Now()))
			if err != nil {
				return fmt.Errorf("failed to compute balances: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			var total int64
			fmt.Fprintln(w, "ID\tName\tBalance")
			for _, account := range accounts {
				balance := balances[account.ID]
				total += balance
				fmt.Fprintf(w, "%s\t%s\t%s\n", account.ID, account.Name, cli.StyleAmount(balance))
			}
			fmt.Fprintf(w, "\t%s\t%s\n", cli.BoldStyle.Render("Total"), cli.StyleAmount(total))
			return nil
		},
	}
}

func renameAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <account> <new-name>",
		Short: "Rename an account",
		Args:  cobra.ExactArgs(2),
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

			account, err := resolveAccount(ctx, store, budget.ID, args[0])
			if err != nil {
				return err
			}

			if err := store.RenameAccount(ctx, account.ID, args[1]); err != nil {
				return fmt.Errorf("failed to rename account: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Renamed %q to %q.", account.Name, args[1])))
			return nil
		},
	}
}

func removeAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account>",
		Short: "Remove an account",
		Long:  `Remove an account. Refused while any transaction still references it; void or amend those first.`,
		Args:  cobra.ExactArgs(1),
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

			account, err := resolveAccount(ctx, store, budget.ID, args[0])
			if err != nil {
				return err
			}

			if err := store.DeleteAccount(ctx, account.ID); err != nil {
				return fmt.Errorf("failed to remove account: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Removed account %q.", account.Name)))
			return nil
		},
	}
}
