package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/supplyplan/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes a single workbook with one sheet per populated run
// section and returns its path.
func (e *Exporter) WriteXLSX(ctx context.Context, state *pipeline.State) (string, error) {
	runDir := filepath.Join(e.dir, state.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name string
		rows [][]string
	}{
		{"Final Plan", planRecords(state.FinalPlan)},
		{"Forecasts", forecastRecords(state.Forecasts)},
		{"Procurement", procurementRecords(state.ProcurementPlan)},
		{"Shipments", shipmentRecords(state.ShipmentPlan)},
	}

	written := 0
	for _, sheet := range sheets {
		if len(sheet.rows) <= 1 {
			continue
		}
		if written == 0 {
			// Rename the default sheet instead of leaving it empty.
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				return "", fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if err := fillSheet(f, sheet.name, sheet.rows); err != nil {
			return "", err
		}
		written++
	}

	path := filepath.Join(runDir, "plan.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	if e.store != nil {
		if err := e.upload(ctx, state.RunID, path, xlsxContentType); err != nil {
			return "", err
		}
	}
	return path, nil
}

func fillSheet(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+1, err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
