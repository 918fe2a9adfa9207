package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/rs/zerolog/log"
)

// zScore95 is the 95th-percentile z-score of the standard normal
// distribution, the fixed service-level target.
const zScore95 = 1.6448536269514722

// budgetSafetyMargin keeps the corrected plan at 95% of the budget to
// absorb rounding.
const budgetSafetyMargin = 0.95

// Planner computes safety stock, reorder points and order quantities
// under a global budget cap.
type Planner struct {
	budgetLimit  float64
	unitCost     float64
	leadTimeDays int
}

// NewPlanner builds a reorder planner with the given budget constraints.
func NewPlanner(budgetLimit, unitCost float64, leadTimeDays int) *Planner {
	if leadTimeDays <= 0 {
		leadTimeDays = 7
	}
	return &Planner{
		budgetLimit:  budgetLimit,
		unitCost:     unitCost,
		leadTimeDays: leadTimeDays,
	}
}

// PlanResult is the reorder plan plus its budget accounting.
type PlanResult struct {
	Rows   []domain.ReorderPlanRow
	Budget domain.BudgetSummary
	Alerts []string
}

// Build produces one plan row per (location, item) group. Rows are
// generated in sorted group order; the cumulative cost check depends on
// that order, so any future parallelization must serialize it.
//
// When the running cost first exceeds the budget a single alert fires,
// and after all rows are produced a uniform proportional scale-down
// brings the plan back under budget. An empty forecast set yields an
// empty plan with an explanatory alert, never an error.
func (p *Planner) Build(forecasts []domain.ForecastEntry) PlanResult {
	result := PlanResult{
		Budget: domain.BudgetSummary{
			Limit:       p.budgetLimit,
			CostPerUnit: p.unitCost,
		},
	}

	if len(forecasts) == 0 {
		result.Alerts = append(result.Alerts, "No forecast data available")
		return result
	}

	groups := make(map[planKey][]float64)
	for _, f := range forecasts {
		key := planKey{location: f.LocationID, item: f.ItemID}
		groups[key] = append(groups[key], f.Forecast)
	}
	keys := make([]planKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].location != keys[j].location {
			return keys[i].location < keys[j].location
		}
		return keys[i].item < keys[j].item
	})

	leadTime := float64(p.leadTimeDays)
	totalCost := 0.0
	budgetExceeded := false

	for _, key := range keys {
		demand := groups[key]
		meanD := mean(demand)
		stdD := sampleStd(demand)

		safetyStock := zScore95 * stdD * math.Sqrt(leadTime)
		reorderPoint := meanD*leadTime + safetyStock
		orderQty := math.Round(reorderPoint)

		lineCost := orderQty * p.unitCost
		totalCost += lineCost
		costRatio := totalCost / p.budgetLimit
		overBudget := costRatio > 1.0

		if overBudget && !budgetExceeded {
			budgetExceeded = true
			result.Alerts = append(result.Alerts, fmt.Sprintf(
				"BUDGET ALERT: Total cost ($%.2f) exceeds budget of $%.2f",
				totalCost, p.budgetLimit))
		}

		result.Rows = append(result.Rows, domain.ReorderPlanRow{
			LocationID:      key.location,
			ItemID:          key.item,
			MeanDailyDemand: round2(meanD),
			SafetyStock:     round2(safetyStock),
			ReorderPoint:    round2(reorderPoint),
			OrderQty:        orderQty,
			UnitCost:        p.unitCost,
			LineCost:        round2(lineCost),
			CostRatio:       round3(costRatio),
			BudgetCompliant: !overBudget,
		})
	}

	// The reported aggregate is the sum of the rounded line costs, not
	// the unrounded running total used for the alert threshold.
	reportedCost := 0.0
	for _, row := range result.Rows {
		reportedCost += row.LineCost
	}
	result.Budget.TotalCost = round2(reportedCost)
	result.Budget.BudgetUtilization = round3(reportedCost / p.budgetLimit)
	result.Budget.BudgetExceeded = budgetExceeded

	if budgetExceeded {
		p.applyBudgetCorrection(&result, totalCost)
	}

	return result
}

// applyBudgetCorrection scales every row down by the same factor. The
// cut is uniform and applied after the fact, not prioritized per item.
func (p *Planner) applyBudgetCorrection(result *PlanResult, totalCost float64) {
	reductionFactor := p.budgetLimit / totalCost * budgetSafetyMargin

	newTotal := 0.0
	for i := range result.Rows {
		reducedQty := result.Rows[i].OrderQty * reductionFactor
		reducedCost := reducedQty * p.unitCost
		result.Rows[i].OrderQty = math.Round(reducedQty)
		result.Rows[i].LineCost = round2(reducedCost)
		newTotal += result.Rows[i].LineCost
	}

	log.Info().
		Float64("reduction_factor", reductionFactor).
		Float64("new_total", newTotal).
		Msg("budget correction applied")
	result.Alerts = append(result.Alerts, fmt.Sprintf(
		"COST REDUCTION: Reduced quantities by %.1f%% to fit budget. New total: $%.2f",
		(1-reductionFactor)*100, newTotal))
}

type planKey struct {
	location string
	item     string
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
