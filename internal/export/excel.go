// Package export renders extraction outcomes as Excel workbooks for
// reviewers and downstream claim systems.
package export

import (
	"fmt"
	"sort"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	summarySheet = "Summary"
	itemsSheet   = "Line Items"
)

// Exporter writes extraction outcomes to XLSX.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new Excel exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Workbook builds an in-memory workbook for one outcome: a summary sheet
// with the insurer-mapped fields and validation results, and a line-items
// sheet from the normalized record.
func (e *Exporter) Workbook(outcome *entity.ExtractionOutcome) (*excelize.File, error) {
	f := excelize.NewFile()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("failed to create items sheet: %w", err)
	}

	if err := e.fillSummary(f, outcome); err != nil {
		return nil, err
	}
	if err := e.fillLineItems(f, outcome); err != nil {
		return nil, err
	}

	e.logger.Info("Workbook built", zap.String("outcome_id", outcome.ID))
	return f, nil
}

// WriteFile renders the workbook to disk.
func (e *Exporter) WriteFile(outcome *entity.ExtractionOutcome, path string) error {
	f, err := e.Workbook(outcome)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	e.logger.Info("Workbook written", zap.String("path", path))
	return nil
}

func (e *Exporter) fillSummary(f *excelize.File, outcome *entity.ExtractionOutcome) error {
	setCell := func(cell string, value any) {
		if err := f.SetCellValue(summarySheet, cell, value); err != nil {
			e.logger.Warn("Failed to set cell", zap.String("cell", cell), zap.Error(err))
		}
	}

	setCell("A1", "Insurer")
	setCell("B1", outcome.InsurerDisplayName)
	setCell("A2", "Insurer Key")
	setCell("B2", outcome.InsurerKey)
	setCell("A3", "Config Version")
	setCell("B3", outcome.ConfigVersion)
	setCell("A4", "Extraction Complete")
	setCell("B4", outcome.Success)
	setCell("A5", "Table Confidence")
	setCell("B5", outcome.TableValidation.TableConfidence)
	setCell("A6", "Total Match")
	setCell("B6", outcome.TableValidation.TotalMatch)

	// Mapped fields in stable order.
	targets := make([]string, 0, len(outcome.MappedFields))
	for target := range outcome.MappedFields {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	row := 8
	setCell(fmt.Sprintf("A%d", row), "Field")
	setCell(fmt.Sprintf("B%d", row), "Value")
	for _, target := range targets {
		row++
		setCell(fmt.Sprintf("A%d", row), target)
		if v := outcome.MappedFields[target]; v != nil {
			switch v.(type) {
			case []entity.LineItem, []any:
				setCell(fmt.Sprintf("B%d", row), fmt.Sprintf("%d item(s)", itemCount(v)))
			default:
				setCell(fmt.Sprintf("B%d", row), v)
			}
		}
	}

	row += 2
	setCell(fmt.Sprintf("A%d", row), "Discrepancies")
	for _, d := range outcome.TableValidation.Discrepancies {
		row++
		setCell(fmt.Sprintf("B%d", row), d)
	}

	return nil
}

func (e *Exporter) fillLineItems(f *excelize.File, outcome *entity.ExtractionOutcome) error {
	headers := []string{"Line", "Tariff Code", "Description", "Date", "Quantity", "Unit Price", "Amount"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(itemsSheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell: %w", err)
		}
	}

	var items []entity.LineItem
	if outcome.Normalized != nil {
		items = outcome.Normalized.LineItems
	}

	for i, item := range items {
		values := []any{
			intOrNil(item.LineNumber),
			strOrNil(item.TariffCode),
			strOrNil(item.Description),
			strOrNil(item.Date),
			numOrNil(item.Quantity),
			numOrNil(item.UnitPrice),
			numOrNil(item.Amount),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell name: %w", err)
			}
			if err := f.SetCellValue(itemsSheet, cell, v); err != nil {
				return fmt.Errorf("failed to set item cell: %w", err)
			}
		}
	}

	return nil
}

func itemCount(v any) int {
	switch t := v.(type) {
	case []entity.LineItem:
		return len(t)
	case []any:
		return len(t)
	default:
		return 0
	}
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func numOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func intOrNil(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
