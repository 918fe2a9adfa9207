package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/pipeline"
	"github.com/andresuchdata/supplyplan/internal/storage"
	"github.com/rs/zerolog/log"
)

// Exporter writes run artifacts to the export directory and, when an
// object store is wired, mirrors them there under <run_id>/<file>.
type Exporter struct {
	dir   string
	store storage.ObjectStorage
}

// NewExporter builds an exporter. store may be nil for local-only export.
func NewExporter(dir string, store storage.ObjectStorage) *Exporter {
	return &Exporter{dir: dir, store: store}
}

// WriteCSV writes one CSV per populated run section and returns the
// paths written. Empty sections are skipped, not emitted as headers-only
// files.
func (e *Exporter) WriteCSV(ctx context.Context, state *pipeline.State) ([]string, error) {
	runDir := filepath.Join(e.dir, state.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var paths []string
	sections := []struct {
		name string
		rows [][]string
	}{
		{"final_plan.csv", planRecords(state.FinalPlan)},
		{"forecasts.csv", forecastRecords(state.Forecasts)},
		{"procurement.csv", procurementRecords(state.ProcurementPlan)},
		{"shipments.csv", shipmentRecords(state.ShipmentPlan)},
	}

	for _, section := range sections {
		if len(section.rows) <= 1 {
			continue
		}
		path := filepath.Join(runDir, section.name)
		if err := writeCSVFile(path, section.rows); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	if e.store != nil {
		for _, path := range paths {
			if err := e.upload(ctx, state.RunID, path, "text/csv"); err != nil {
				return nil, err
			}
		}
	}

	log.Info().Str("run_id", state.RunID).Int("files", len(paths)).Msg("csv export written")
	return paths, nil
}

func writeCSVFile(path string, rows [][]string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row to %s: %w", path, err)
		}
	}
	return w.Error()
}

// ListArtifacts returns the objects already mirrored to storage for a
// run. Requires a configured object store.
func (e *Exporter) ListArtifacts(ctx context.Context, runID string) ([]storage.ObjectInfo, error) {
	if e.store == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	return e.store.ListObjects(ctx, runID+"/")
}

func (e *Exporter) upload(ctx context.Context, runID, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s for upload: %w", path, err)
	}
	key := runID + "/" + filepath.Base(path)
	return e.store.UploadObject(ctx, key, data, contentType)
}

func planRecords(rows []domain.ReorderPlanRow) [][]string {
	records := [][]string{{
		"location_id", "item_id", "mean_daily_demand", "safety_stock",
		"reorder_point", "order_qty", "unit_cost", "line_cost", "budget_compliant",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.LocationID, r.ItemID,
			formatFloat(r.MeanDailyDemand), formatFloat(r.SafetyStock),
			formatFloat(r.ReorderPoint), formatFloat(r.OrderQty),
			formatFloat(r.UnitCost), formatFloat(r.LineCost),
			strconv.FormatBool(r.BudgetCompliant),
		})
	}
	return records
}

func forecastRecords(rows []domain.ForecastEntry) [][]string {
	records := [][]string{{"location_id", "item_id", "horizon_day", "forecast", "seasonality_pattern"}}
	for _, r := range rows {
		records = append(records, []string{
			r.LocationID, r.ItemID, strconv.Itoa(r.HorizonDay),
			formatFloat(r.Forecast), r.Seasonality,
		})
	}
	return records
}

func procurementRecords(rows []domain.ProcurementEntry) [][]string {
	records := [][]string{{
		"location_id", "item_id", "qty_needed", "primary_supplier",
		"primary_supplier_status", "alternative_supplier", "procurement_status", "total_cost",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.LocationID, r.ItemID, formatFloat(r.QtyNeeded),
			r.PrimarySupplier, r.PrimarySupplierStatus,
			r.AlternativeSupplier, r.Status, formatFloat(r.TotalCost),
		})
	}
	return records
}

func shipmentRecords(rows []domain.ShipmentAllocation) [][]string {
	records := [][]string{{
		"warehouse_id", "warehouse_name", "location", "quantity", "shipments", "estimated_days",
	}}
	for _, r := range rows {
		records = append(records, []string{
			r.WarehouseID, r.WarehouseName, r.Location,
			strconv.Itoa(r.Quantity), strconv.Itoa(r.Shipments), strconv.Itoa(r.EstimatedDays),
		})
	}
	return records
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
