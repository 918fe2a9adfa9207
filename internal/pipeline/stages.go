package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/forecast"
	"github.com/rs/zerolog/log"
)

// runLoad pulls the raw demand history through the loader. A stale feed
// is recoverable (the loader falls back to its last good read); an empty
// feed with no fallback is not.
func (m *Machine) runLoad(ctx context.Context, state *State) error {
	points, alerts, err := m.loader.Load()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	state.RawData = points
	state.DataAlerts = append(state.DataAlerts, alerts...)
	log.Info().Int("rows", len(points)).Msg("history loaded")
	return nil
}

// runProfile normalizes the raw feed: rows sorted by (location, item,
// date) with negative quantities clamped to zero. Downstream stages rely
// on this ordering.
func (m *Machine) runProfile(ctx context.Context, state *State) error {
	processed := make([]domain.HistoryPoint, len(state.RawData))
	copy(processed, state.RawData)

	negatives := 0
	for i := range processed {
		if processed[i].Quantity < 0 {
			processed[i].Quantity = 0
			negatives++
		}
	}
	sort.Slice(processed, func(i, j int) bool {
		a, b := processed[i], processed[j]
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		return a.Date.Before(b.Date)
	})

	if negatives > 0 {
		state.DataAlerts = append(state.DataAlerts, fmt.Sprintf(
			"DATA: %d negative quantities clamped to zero", negatives))
	}
	state.ProcessedData = processed
	return nil
}

// runFeatureEngineer derives lag and rolling-window features per
// (location, item) series. Rows whose 7-day windows fall outside the
// series are dropped rather than padded.
func (m *Machine) runFeatureEngineer(ctx context.Context, state *State) error {
	bySeries := make(map[string][]domain.HistoryPoint)
	var order []string
	for _, p := range state.ProcessedData {
		key := p.LocationID + "\x00" + p.ItemID
		if _, seen := bySeries[key]; !seen {
			order = append(order, key)
		}
		bySeries[key] = append(bySeries[key], p)
	}

	var features []domain.FeatureRow
	for _, key := range order {
		series := bySeries[key]
		for i := 7; i < len(series); i++ {
			p := series[i]
			rolling := 0.0
			for j := i - 6; j <= i; j++ {
				rolling += series[j].Quantity
			}
			features = append(features, domain.FeatureRow{
				LocationID: p.LocationID,
				ItemID:     p.ItemID,
				Date:       p.Date,
				Quantity:   p.Quantity,
				Lag1:       series[i-1].Quantity,
				Lag7:       series[i-7].Quantity,
				Rolling7:   rolling / 7,
				Weekday:    int(p.Date.Weekday()),
				Month:      int(p.Date.Month()),
			})
		}
	}

	state.Features = features
	log.Debug().Int("rows", len(features)).Msg("features engineered")
	return nil
}

func (m *Machine) runForecast(ctx context.Context, state *State) error {
	result := m.forecaster.Forecast(ctx, state.ProcessedData)
	state.Forecasts = result.Entries
	state.ForecastAlerts = append(state.ForecastAlerts, result.Alerts...)
	state.ForecastCacheStats = result.CacheStats
	return nil
}

func (m *Machine) runReorderPlan(ctx context.Context, state *State) error {
	result := m.planner.Build(state.Forecasts)
	state.ReorderPlan = result.Rows
	state.Budget = result.Budget
	state.BudgetAlerts = append(state.BudgetAlerts, result.Alerts...)
	return nil
}

func (m *Machine) runSourcing(ctx context.Context, state *State) error {
	result := m.resolver.Resolve(state.ReorderPlan)
	state.ProcurementPlan = result.Procurement
	state.SupplierStatus = result.SupplierStatus
	state.SupplierAlerts = append(state.SupplierAlerts, result.Alerts...)
	state.Escalations = append(state.Escalations, result.Escalations...)
	return nil
}

// surgeMultiplier sizes the stress scenario evaluated every run.
const surgeMultiplier = 5.0

// runCapacity checks warehouse headroom against the aggregate order
// quantity. Infeasibility is reported through alerts, never as an error:
// the reviewer sees the problem and decides.
func (m *Machine) runCapacity(ctx context.Context, state *State) error {
	totalQty := 0
	for _, row := range state.ReorderPlan {
		totalQty += int(row.OrderQty)
	}

	constraints := m.capacity.DetectConstraints()
	for _, c := range constraints {
		state.CapacityAlerts = append(state.CapacityAlerts, fmt.Sprintf(
			"CAPACITY %s: %s at %.1f%% utilization (%d units available)",
			c.Severity, c.WarehouseName, c.UtilizationRate*100, c.AvailableCapacity))
	}

	shipments := m.capacity.PlanShipments(totalQty, m.horizonDays)
	if shipments == nil && totalQty > 0 {
		state.CapacityAlerts = append(state.CapacityAlerts,
			"CRITICAL: Insufficient warehouse capacity for total demand")
	}

	surge := m.capacity.PlanSurge(totalQty, surgeMultiplier)
	if !surge.CanAccommodate {
		state.CapacityAlerts = append(state.CapacityAlerts, fmt.Sprintf(
			"SURGE RISK: %.0fx demand surge needs %d units beyond current capacity",
			surge.SurgeMultiplier, surge.SpaceNeededForSurge))
	}

	state.WarehouseStatus = m.warehouses.Snapshot()
	state.CapacityConstraints = constraints
	state.ShipmentPlan = shipments
	state.SurgePlan = &surge
	return nil
}

// applyDecision materializes the reviewer's decision into the final
// plan. "pending" leaves the plan populated even though the run will
// not continue to evaluation; consumers must check the run status, not
// the plan length.
func applyDecision(state *State) {
	switch state.HumanDecision {
	case domain.DecisionApprove, domain.DecisionPending:
		state.FinalPlan = clonePlan(state.ReorderPlan)
	case domain.DecisionModify:
		factor := state.AdjustmentFactor
		if factor <= 0 {
			factor = defaultAdjustmentFactor
			state.AdjustmentFactor = factor
		}
		adjusted := clonePlan(state.ReorderPlan)
		for i := range adjusted {
			adjusted[i].OrderQty = math.Round(adjusted[i].OrderQty * factor)
			adjusted[i].LineCost = math.Round(adjusted[i].OrderQty*adjusted[i].UnitCost*100) / 100
		}
		state.FinalPlan = adjusted
	case domain.DecisionReject:
		state.FinalPlan = []domain.ReorderPlanRow{}
	}
}

func clonePlan(rows []domain.ReorderPlanRow) []domain.ReorderPlanRow {
	out := make([]domain.ReorderPlanRow, len(rows))
	copy(out, rows)
	return out
}

// runEvaluate summarizes the forecast distribution and, when an
// advisory source is wired, folds in its confidence adjustment. An
// advisory failure degrades to a neutral adjustment of 1.0.
func (m *Machine) runEvaluate(ctx context.Context, state *State) error {
	values := make([]float64, len(state.Forecasts))
	for i, f := range state.Forecasts {
		values[i] = f.Forecast
	}

	metrics := summarize(values)
	metrics.ConfidenceAdjustment = 1.0

	if m.advisory != nil {
		prompt := fmt.Sprintf(
			"Assess the risk of a demand plan with mean forecast %.2f, std %.2f, total %.2f across %d rows. "+
				"Return JSON with confidence_adjustment (0.85-1.15) and risk_comment.",
			metrics.MeanForecast, metrics.StdForecast, metrics.TotalForecast, len(values))
		signal, err := m.advisory.Assess(ctx, prompt)
		if err != nil {
			log.Warn().Err(err).Msg("advisory assessment failed, using neutral adjustment")
		} else {
			// The bound holds regardless of which advisory is wired.
			metrics.ConfidenceAdjustment = forecast.ClampAdjustment(signal.ConfidenceAdjustment)
			metrics.RiskComment = signal.RiskComment
		}
	}
	metrics.AdjustedMeanForecast = round2(metrics.MeanForecast * metrics.ConfidenceAdjustment)

	state.Metrics = &metrics
	return nil
}

func summarize(values []float64) domain.EvaluationMetrics {
	if len(values) == 0 {
		return domain.EvaluationMetrics{}
	}

	total := 0.0
	minV, maxV := values[0], values[0]
	for _, v := range values {
		total += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	meanV := total / float64(len(values))
	stdV := sampleStd(values, meanV)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return domain.EvaluationMetrics{
		MeanForecast:   round2(meanV),
		StdForecast:    round2(stdV),
		TotalForecast:  round2(total),
		MinForecast:    round2(minV),
		MaxForecast:    round2(maxV),
		MedianForecast: round2(median(sorted)),
		P90Forecast:    round2(quantile(sorted, 0.9)),
		Skewness:       round3(skewness(values, meanV, stdV)),
	}
}

// quantile is nearest-rank over an already sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// skewness is the adjusted Fisher-Pearson coefficient, zero for
// degenerate distributions.
func skewness(values []float64, mean, std float64) float64 {
	n := float64(len(values))
	if n < 3 || std == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := (v - mean) / std
		sum += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
