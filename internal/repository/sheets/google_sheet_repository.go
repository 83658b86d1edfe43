package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/wattwise/internal/config"
	"github.com/mamadbah2/wattwise/internal/domain/models"
)

const reportWriteRange = "DailyReports!A:I"

// Exporter pushes daily energy reports to an external spreadsheet.
type Exporter interface {
	AppendDailyReport(ctx context.Context, report models.DailyEnergyReport) error
}

// GoogleSheetExporter implements Exporter using the official Google Sheets API.
type GoogleSheetExporter struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetExporter builds a Google Sheets backed exporter instance.
func NewGoogleSheetExporter(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetExporter{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendDailyReport appends one report as a spreadsheet row: date, user, the
// five appliance totals in a fixed column order, day total, running count.
func (e *GoogleSheetExporter) AppendDailyReport(ctx context.Context, report models.DailyEnergyReport) error {
	row := []interface{}{
		report.Date.Format("2006-01-02"),
		report.Username,
	}
	for _, name := range models.ApplianceNames {
		row = append(row, report.ByAppliance[string(name)])
	}
	row = append(row, report.TotalConsumption, report.RunningCount)

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{row}}

	call := e.service.Spreadsheets.Values.Append(e.spreadsheetID, reportWriteRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append report row into range %s: %w", reportWriteRange, err)
	}

	e.logger.Debug("report row appended to sheet",
		zap.String("user", report.Username),
		zap.Time("date", report.Date))
	return nil
}
