package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/config"
	"github.com/envelopezero/engine/internal/model"
	"github.com/envelopezero/engine/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export budget reports",
	}

	cmd.AddCommand(exportSheetsCmd())

	return cmd
}

func exportSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [YYYY-MM]",
		Short: "Export a month's budget report to Google Sheets",
		Long: `Write the month's projections and dashboard to a Google Sheets tab,
replacing the tab's previous contents. Authenticate once with
'envelope auth sheets' or point sheets.service_account_path at a service
account key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sheetsConfig, err := config.LoadSheetsConfig()
			if err != nil {
				return fmt.Errorf("sheets configuration: %w", err)
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

			month := model.MonthOf(time.Now())
			if len(args) == 1 {
				month, err = model.ParseMonth(args[0])
				if err != nil {
					return err
				}
			}

			projections, err := coordinator.MonthProjections(ctx, budget.ID, month)
			if err != nil {
				return fmt.Errorf("failed to compute projections: %w", err)
			}
			dash, err := coordinator.Dashboard(ctx, budget.ID, month)
			if err != nil {
				return fmt.Errorf("failed to compute dashboard: %w", err)
			}
			names, err := categoryNames(ctx, store, budget.ID)
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
			if err != nil {
				return err
			}

			report := sheets.MonthReport{
				Budget:        budget,
				Month:         month,
				Dashboard:     dash,
				Projections:   projections,
				CategoryNames: names,
			}
			if err := writer.ExportMonth(ctx, report); err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Exported %s to Google Sheets.", month)))
			return nil
		},
	}
}
