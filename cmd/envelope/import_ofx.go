package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/engine"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from bank files",
	}

	cmd.AddCommand(importOFXCmd())

	return cmd
}

func importOFXCmd() *cobra.Command {
	var (
		accountRef  string
		categoryRef string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX files exported from your bank.
Every entry lands in one category (pick it with --category) and can be
re-split later with 'envelope tx amend'. Entries already imported are
recognized by their bank transaction ID and skipped, so re-importing an
overlapping statement is safe.

Examples:
  envelope import ofx --account Checking --category Inbox ~/Downloads/jan_2024.qfx
  envelope import ofx --account Checking --category Inbox ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var files []string
			for _, pattern := range args {
				matches, err := filepath.Glob(pattern)
				if err != nil {
					return fmt.Errorf("invalid pattern %s: %w", pattern, err)
				}
				if len(matches) == 0 {
					if _, err := os.Stat(pattern); err == nil {
						files = append(files, pattern)
					} else {
						slog.Warn("No files found matching pattern", "pattern", pattern)
					}
				} else {
					files = append(files, matches...)
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no files found to import")
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

			parser := ofx.NewParser()
			var entries []ofx.StatementEntry
			for _, path := range files {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				parsed, err := parser.ParseFile(ctx, f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
				}
				entries = append(entries, parsed...)
			}

			if dryRun {
				for _, entry := range entries {
					fmt.Printf("%s  %-30s  %s\n",
						entry.Date.Format("2006-01-02"), entry.Payee, cli.StyleAmount(entry.Amount))
				}
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Dry run: %d entries, nothing saved.", len(entries))))
				return nil
			}

			imported, skipped, err := importEntries(cmd, coordinator, budget.ID, account.ID, category.ID, entries)
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"Imported %d transactions (%d already present).", imported, skipped)))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "account to import into (required)")
	cmd.Flags().StringVar(&categoryRef, "category", "", "category for imported entries (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview without saving")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

// importEntries appends statement entries as single-split transactions. The
// transaction ID is derived from the bank's FITID, so duplicates from
// overlapping statements surface as ErrDuplicateEntry and are skipped.
func importEntries(cmd *cobra.Command, coordinator *engine.Coordinator, budgetID, accountID, categoryID string, entries []ofx.StatementEntry) (imported, skipped int, err error) {
	ctx := cmd.Context()

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Importing transactions..."),
		progressbar.OptionClearOnFinish(),
	)

	for _, entry := range entries {
		split := model.Split{CategoryID: categoryID, Memo: entry.Memo}
		if entry.Amount >= 0 {
			split.Inflow = entry.Amount
		} else {
			split.Outflow = -entry.Amount
		}

		txn := &model.Transaction{
			ID:        deterministicImportID(entry.AccountID, entry.FiTID),
			BudgetID:  budgetID,
			AccountID: accountID,
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
			return imported, skipped, fmt.Errorf("failed to import entry %s: %w", entry.FiTID, appendErr)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	return imported, skipped, nil
}

// deterministicImportID builds a stable transaction ID from the bank's
// identifiers so the same statement entry never imports twice.
func deterministicImportID(accountID, fitID string) string {
	return fmt.Sprintf("ofx-%s-%s", accountID, fitID)
}
