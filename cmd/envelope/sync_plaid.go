package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/plaid"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull transactions from connected banks",
	}

	cmd.AddCommand(syncPlaidCmd())

	return cmd
}

func plaidConfigFromViper() plaid.Config {
	return plaid.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
		AccessToken: viper.GetString("plaid.access_token"),
	}
}

func syncPlaidCmd() *cobra.Command {
	var (
		accountRef  string
		categoryRef string
		days        int
		skipPending bool
	)

	cmd := &cobra.Command{
		Use:   "plaid",
		Short: "Sync transactions from Plaid",
		Long: `Fetch recent transactions from Plaid and append them to the ledger.
Configure plaid.client_id, plaid.secret, plaid.environment, and
plaid.access_token in the config file or ENVELOPE_PLAID_* environment
variables. Entries already synced are recognized by their Plaid transaction
ID and skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := plaid.NewClient(plaidConfigFromViper())
			if err != nil {
				return err
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
			account, err := resolveAccount(ctx, store, budget.ID, accountRef)
			if err != nil {
				return err
			}
			category, err := resolveCategory(ctx, store, budget.ID, categoryRef)
			if err != nil {
				return err
			}

			end := time.Now().UTC()
			start := end.AddDate(0, 0, -days)
			entries, err := client.GetEntries(ctx, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch from Plaid: %w", err)
			}

			var imported, skipped, pending int
			for _, entry := range entries {
				if entry.Pending && skipPending {
					pending++
					continue
				}

				split := model.Split{CategoryID: category.ID, Memo: entry.Memo}
				if entry.Amount >= 0 {
					split.Inflow = entry.Amount
				} else {
					split.Outflow = -entry.Amount
				}

				txn := &model.Transaction{
					ID:        fmt.Sprintf("plaid-%s", entry.TransactionID),
					BudgetID:  budget.ID,
					AccountID: account.ID,
					Date:      entry.Date,
					Payee:     entry.Payee,
					Memo:      entry.Memo,
					Splits:    []model.Split{split},
				}

				switch appendErr := coordinator.AppendTransaction(ctx, txn); {
				case appendErr == nil:
					imported++
				case errors.Is(appendErr, common.ErrDuplicateEntry):
					skipped++
				default:
					return fmt.Errorf("failed to record entry %s: %w", entry.TransactionID, appendErr)
				}
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"Synced %d transactions (%d already present, %d pending skipped).",
				imported, skipped, pending)))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "account to sync into (required)")
	cmd.Flags().StringVar(&categoryRef, "category", "", "category for synced entries (required)")
	cmd.Flags().IntVar(&days, "days", 30, "how many days back to fetch")
	cmd.Flags().BoolVar(&skipPending, "skip-pending", true, "skip transactions the bank has not settled yet")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
