package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/engine"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/service"
)

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Record and inspect ledger transactions",
	}

	cmd.AddCommand(addTxCmd())
	cmd.AddCommand(amendTxCmd())
	cmd.AddCommand(voidTxCmd())
	cmd.AddCommand(listTxCmd())

	return cmd
}

// parseSplits turns repeated --split "category:amount[:memo]" flags into
// model splits. Positive amounts are outflows (spending), negative amounts
// are inflows, matching how people read bank statements.
func parseSplits(cmd *cobra.Command, store service.Storage, budgetID string, specs []string) ([]model.Split, error) {
	ctx := cmd.Context()

	splits := make([]model.Split, 0, len(specs))
	for i, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("split %d: expected category:amount[:memo], got %q", i, spec)
		}

		category, err := resolveCategory(ctx, store, budgetID, parts[0])
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i, err)
		}

		cents, err := parseCents(parts[1])
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i, err)
		}

		split := model.Split{CategoryID: category.ID}
		if len(parts) == 3 {
			split.Memo = parts[2]
		}
		if cents >= 0 {
			split.Outflow = cents
		} else {
			split.Inflow = -cents
		}
		splits = append(splits, split)
	}
	return splits, nil
}

func addTxCmd() *cobra.Command {
	var (
		accountRef string
		dateStr    string
		payee      string
		memo       string
		splitSpecs []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Long: `Record a transaction against an account. Each --split is
category:amount[:memo]; positive amounts spend from the envelope, negative
amounts add to it.

Examples:
  # $45.20 of groceries from checking
  envelope tx add --account Checking --payee "Grocery Mart" --split "Groceries:45.20"

  # Paycheck into the income envelope
  envelope tx add --account Checking --payee Employer --split "Income:-2500.00"

  # One receipt across two envelopes
  envelope tx add --account Checking --payee Costco \
    --split "Groceries:80.00" --split "Household:35.50"`,
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

			account, err := resolveAccount(ctx, store, budget.ID, accountRef)
			if err != nil {
				return err
			}

			date := time.Now().UTC()
			if dateStr != "" {
				date, err = time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateStr)
				}
			}

			splits, err := parseSplits(cmd, store, budget.ID, splitSpecs)
			if err != nil {
				return err
			}

			txn := &model.Transaction{
				ID:        model.NewID(),
				BudgetID:  budget.ID,
				AccountID: account.ID,
				Date:      date,
				Payee:     payee,
				Memo:      memo,
				Splits:    splits,
			}

			if err := coordinator.AppendTransaction(ctx, txn); err != nil {
				return fmt.Errorf("failed to record transaction: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Recorded transaction %s.", txn.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "account name or ID (required)")
	cmd.Flags().StringVar(&dateStr, "date", "", "transaction date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&payee, "payee", "", "payee")
	cmd.Flags().StringVar(&memo, "memo", "", "memo")
	cmd.Flags().StringArrayVar(&splitSpecs, "split", nil, "split as category:amount[:memo] (repeatable, required)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("split")

	return cmd
}

func amendTxCmd() *cobra.Command {
	var (
		accountRef string
		dateStr    string
		payee      string
		memo       string
		splitSpecs []string
	)

	cmd := &cobra.Command{
		Use:   "amend <transaction-id>",
		Short: "Replace a transaction in place",
		Long: `Amend a transaction. The whole transaction is replaced: flags you omit
keep their current value, but --split replaces the full split set. Amends are
checked against the revision you fetched, so two people editing the same
transaction cannot silently overwrite each other.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, coordinator, err := initCoordinator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			txn, err := store.GetTransaction(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load transaction: %w", err)
			}
			expectedRevision := txn.Revision

			if accountRef != "" {
				account, err := resolveAccount(ctx, store, txn.BudgetID, accountRef)
				if err != nil {
					return err
				}
				txn.AccountID = account.ID
			}
			if dateStr != "" {
				date, err := time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateStr)
				}
				txn.Date = date
			}
			if cmd.Flags().Changed("payee") {
				txn.Payee = payee
			}
			if cmd.Flags().Changed("memo") {
				txn.Memo = memo
			}
			if len(splitSpecs) > 0 {
				splits, err := parseSplits(cmd, store, txn.BudgetID, splitSpecs)
				if err != nil {
					return err
				}
				txn.Splits = splits
			}

			if err := coordinator.AmendTransaction(ctx, txn, expectedRevision); err != nil {
				if engine.IsConflict(err) {
					return fmt.Errorf("transaction changed underneath you; re-run to pick up the latest revision: %w", err)
				}
				return fmt.Errorf("failed to amend transaction: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Amended transaction %s (now revision %d).", txn.ID, txn.Revision)))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "move to another account")
	cmd.Flags().StringVar(&dateStr, "date", "", "new date YYYY-MM-DD")
	cmd.Flags().StringVar(&payee, "payee", "", "new payee")
	cmd.Flags().StringVar(&memo, "memo", "", "new memo")
	cmd.Flags().StringArrayVar(&splitSpecs, "split", nil, "replacement splits as category:amount[:memo]")

	return cmd
}

func voidTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "void <transaction-id>",
		Short: "Void a transaction",
		Long:  `Void a transaction. It stops counting toward balances and envelopes but stays in the ledger for audit.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, coordinator, err := initCoordinator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			txn, err := store.GetTransaction(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load transaction: %w", err)
			}

			if err := coordinator.VoidTransaction(ctx, txn.BudgetID, txn.ID); err != nil {
				return fmt.Errorf("failed to void transaction: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Voided transaction %s.", txn.ID)))
			return nil
		},
	}
}

func listTxCmd() *cobra.Command {
	var (
		accountRef  string
		categoryRef string
		fromStr     string
		toStr       string
		limit       int
		showVoided  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
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

			filter := service.TransactionFilter{
				IncludeVoided: showVoided,
				Limit:         limit,
			}
			if accountRef != "" {
				account, err := resolveAccount(ctx, store, budget.ID, accountRef)
				if err != nil {
					return err
				}
				filter.AccountID = account.ID
			}
			if categoryRef != "" {
				category, err := resolveCategory(ctx, store, budget.ID, categoryRef)
				if err != nil {
					return err
				}
				filter.CategoryID = category.ID
			}
			if fromStr != "" {
				from, err := time.Parse("2006-01-02", fromStr)
				if err != nil {
					return fmt.Errorf("invalid --from date %q", fromStr)
				}
				filter.StartDate = &from
			}
			if toStr != "" {
				to, err := time.Parse("2006-01-02", toStr)
				if err != nil {
					return fmt.Errorf("invalid --to date %q", toStr)
				}
				filter.EndDate = &to
			}

			transactions, err := store.ListTransactions(ctx, budget.ID, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			if len(transactions) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No transactions match."))
				return nil
			}

			names, err := categoryNames(ctx, store, budget.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "Date\tID\tPayee\tCategory\tAmount\t")
			for _, txn := range transactions {
				flag := ""
				if txn.Voided {
					flag = cli.WarningStyle.Render("voided")
				}
				for i, split := range txn.Splits {
					date, id, payee := "", "", ""
					if i == 0 {
						date = txn.Date.Format("2006-01-02")
						id = txn.ID
						payee = txn.Payee
					}
					name := names[split.CategoryID]
					if name == "" {
						name = split.CategoryID
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						date, id, payee, name, cli.StyleAmount(split.Activity()), flag)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "filter by account")
	cmd.Flags().StringVar(&categoryRef, "category", "", "filter by category")
	cmd.Flags().StringVar(&fromStr, "from", "", "earliest date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "latest date YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum transactions to show")
	cmd.Flags().BoolVar(&showVoided, "voided", false, "include voided transactions")

	return cmd
}
