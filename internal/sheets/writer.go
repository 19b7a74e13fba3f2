package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

// MonthReport is everything the exporter writes for one budget-month.
type MonthReport struct {
	Budget        *model.Budget
	Month         model.Month
	Dashboard     *model.Dashboard
	Projections   []model.CategoryProjection
	CategoryNames map[string]string
}

// Writer exports monthly budget reports to a Google Sheets spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a Google Sheets exporter.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// ExportMonth writes one month's projections and dashboard to the
// spreadsheet, replacing the previous contents of the month's tab.
func (w *Writer) ExportMonth(ctx context.Context, report MonthReport) error {
	w.logger.Info("starting sheet export",
		"budget", report.Budget.Name,
		"month", report.Month.String(),
		"categories", len(report.Projections))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	sheetName := report.Month.String()
	if err := w.ensureSheet(ctx, spreadsheetID, sheetName); err != nil {
		return fmt.Errorf("failed to prepare sheet tab: %w", err)
	}

	values := w.buildRows(report)
	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeRows(ctx, spreadsheetID, sheetName, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.formatHeader(ctx, spreadsheetID, sheetName)
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data already landed.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("sheet export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))
	return nil
}

func (w *Writer) buildRows(report MonthReport) [][]any {
	rows := [][]any{
		{report.Budget.Name + " — " + report.Month.String()},
		{},
		{"Inflow", centsToDecimal(report.Dashboard.Inflow)},
		{"Outflow", centsToDecimal(report.Dashboard.Outflow)},
		{"Ready to Assign", centsToDecimal(report.Dashboard.Available)},
		{},
		{"Category", "Assigned", "Activity", "Available"},
	}

	for _, proj := range report.Projections {
		name := report.CategoryNames[proj.CategoryID]
		if name == "" {
			name = proj.CategoryID
		}
		rows = append(rows, []any{
			name,
			centsToDecimal(proj.Assigned),
			centsToDecimal(proj.Activity),
			centsToDecimal(proj.Available),
		})
	}
	return rows
}

func centsToDecimal(cents int64) float64 {
	return float64(cents) / 100
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: w.config.SpreadsheetName,
		},
	}
	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	w.logger.Info("created spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)
	return created.SpreadsheetId, nil
}

func (w *Writer) ensureSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	spreadsheet, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to fetch spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			clearReq := w.service.Spreadsheets.Values.Clear(spreadsheetID, sheetName+"!A:Z", &sheets.ClearValuesRequest{})
			if _, err := clearReq.Context(ctx).Do(); err != nil {
				return fmt.Errorf("failed to clear sheet: %w", err)
			}
			return nil
		}
	}

	_, err = w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add sheet tab: %w", err)
	}
	return nil
}

func (w *Writer) writeRows(ctx context.Context, spreadsheetID, sheetName string, values [][]any) error {
	valueRange := &sheets.ValueRange{Values: values}
	_, err := w.service.Spreadsheets.Values.
		Update(spreadsheetID, sheetName+"!A1", valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update values: %w", err)
	}
	return nil
}

func (w *Writer) formatHeader(ctx context.Context, spreadsheetID, sheetName string) error {
	spreadsheet, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to fetch spreadsheet: %w", err)
	}

	var sheetID int64 = -1
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetID = sheet.Properties.SheetId
			break
		}
	}
	if sheetID < 0 {
		return fmt.Errorf("sheet tab %q not found", sheetName)
	}

	bold := &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}}
	_, err = w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell:   &sheets.CellData{UserEnteredFormat: bold},
					Fields: "userEnteredFormat.textFormat.bold",
				},
			},
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 6,
						EndRowIndex:   7,
					},
					Cell:   &sheets.CellData{UserEnteredFormat: bold},
					Fields: "userEnteredFormat.textFormat.bold",
				},
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to format header: %w", err)
	}
	return nil
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	service, err := sheets.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return service, nil
}
