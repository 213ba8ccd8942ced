package reconciliation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Open payments"

var reportHeaders = []string{
	"Payment reference",
	"Attempt",
	"User ID",
	"Email",
	"Amount (minor)",
	"Currency",
	"Total",
	"Items",
	"Ship to",
	"Attempts",
	"Last error",
	"First seen",
	"Last seen",
}

// WriteReport renders the failures as an xlsx workbook.
func WriteReport(w io.Writer, failures []model.ReconciliationFailure) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for i, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
	if err := f.SetCellStyle(reportSheet, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(reportSheet, "A", "M", 20); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	for i, failure := range failures {
		row := []interface{}{
			failure.PaymentReference,
			failure.AttemptID,
			failure.UserID,
			failure.Email,
			failure.AmountMinor,
			failure.Currency,
			failure.Total.String(),
			describeItems(failure.CartSnapshot),
			describeAddress(failure.ShippingAddress),
			failure.Attempts,
			failure.LastError,
			failure.CreatedAt.UTC().Format(time.RFC3339),
			failure.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// SaveReport writes the open entries to dir and returns the file path and
// the number of entries in it.
func (l *Ledger) SaveReport(ctx context.Context, dir string, now time.Time) (string, int, error) {
	failures, err := l.ListOpen(ctx)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, "reconciliation-"+now.Format("20060102-150405")+".xlsx")
	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := WriteReport(file, failures); err != nil {
		return "", 0, err
	}

	logger.Info("Reconciliation report written", map[string]interface{}{
		"path":  path,
		"count": len(failures),
	})
	return path, len(failures), nil
}

func describeItems(items []model.OrderLineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%dx %s (%s) @ %s", item.Quantity, item.Title, item.VariantSKU, item.UnitPrice.String()))
	}
	return strings.Join(parts, "; ")
}

func describeAddress(a model.ShippingAddress) string {
	parts := []string{a.FullName, a.AddressLine1, a.AddressLine2, a.City, a.State, a.ZipCode, a.Country}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
