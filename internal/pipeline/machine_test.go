package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/supplyplan/internal/capacity"
	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/forecast"
	"github.com/andresuchdata/supplyplan/internal/loader"
	"github.com/andresuchdata/supplyplan/internal/planner"
	"github.com/andresuchdata/supplyplan/internal/sourcing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeHistoryCSV builds a feed with constant demand of 10 units per day
// for two locations and two items over 30 days.
func writeHistoryCSV(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	_, err = file.WriteString("location_id,item_id,date,quantity\n")
	require.NoError(t, err)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, location := range []string{"L1", "L2"} {
		for _, item := range []string{"ITEM1", "ITEM2"} {
			for day := 0; day < 30; day++ {
				_, err = fmt.Fprintf(file, "%s,%s,%s,10\n",
					location, item, start.AddDate(0, 0, day).Format("2006-01-02"))
				require.NoError(t, err)
			}
		}
	}
	return path
}

func testMachine(t *testing.T, decide DecisionFunc) *Machine {
	t.Helper()

	registry := sourcing.NewDemoRegistry()
	registry.SetStatus("S003", domain.SupplierActive) // quiet supplier base unless a test wants noise

	return NewMachine(Options{
		Loader:      loader.NewLoader(writeHistoryCSV(t)),
		Forecaster:  forecast.NewForecaster(forecast.NewCache(time.Hour), nil, 7),
		Planner:     planner.NewPlanner(100000, 50, 7),
		Resolver:    sourcing.NewResolver(registry, rand.New(rand.NewSource(1))),
		Warehouses:  capacity.NewDemoRegistry(),
		Decide:      decide,
		HorizonDays: 7,
	})
}

func TestRunPausesForReview(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-1")

	require.NoError(t, m.Run(context.Background(), state))

	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, domain.DecisionNone, state.HumanDecision)
	assert.Empty(t, state.FinalPlan)
	assert.Nil(t, state.Metrics)

	// All stages up to review completed.
	for _, name := range []string{StageLoad, StageProfile, StageFeatureEngineer, StageForecast, StageReorderPlan, StageSourcing, StageCapacity} {
		assert.True(t, state.StageDone(name), name)
	}
	assert.False(t, state.StageDone(StageHumanReview))

	// Constant demand of 10/day over a 7-day lead time: 70 units per
	// group, four groups, well under budget.
	require.Len(t, state.ReorderPlan, 4)
	for _, row := range state.ReorderPlan {
		assert.Equal(t, 70.0, row.OrderQty)
		assert.True(t, row.BudgetCompliant)
	}
	assert.False(t, state.Budget.BudgetExceeded)
	assert.Equal(t, 14000.0, state.Budget.TotalCost)
}

func TestRunResumeAfterApproval(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-2")
	require.NoError(t, m.Run(context.Background(), state))
	require.Equal(t, StatusPaused, state.Status)

	forecastsBefore := len(state.Forecasts)
	state.HumanDecision = domain.DecisionApprove
	require.NoError(t, m.Run(context.Background(), state))

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, state.ReorderPlan, state.FinalPlan)
	assert.True(t, state.StageDone(StageHumanReview))
	assert.True(t, state.StageDone(StageEvaluate))

	// Resume must not recompute completed stages.
	assert.Len(t, state.Forecasts, forecastsBefore)

	require.NotNil(t, state.Metrics)
	assert.Equal(t, 10.0, state.Metrics.MeanForecast)
	assert.Equal(t, 280.0, state.Metrics.TotalForecast)
	assert.Equal(t, 1.0, state.Metrics.ConfidenceAdjustment)
	assert.Equal(t, 10.0, state.Metrics.AdjustedMeanForecast)
}

func TestRunModifyScalesQuantities(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-3")
	require.NoError(t, m.Run(context.Background(), state))

	state.HumanDecision = domain.DecisionModify
	require.NoError(t, m.Run(context.Background(), state))

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, defaultAdjustmentFactor, state.AdjustmentFactor)
	require.Len(t, state.FinalPlan, 4)
	for _, row := range state.FinalPlan {
		assert.Equal(t, 77.0, row.OrderQty, "70 * 1.1")
		assert.Equal(t, 3850.0, row.LineCost)
	}

	// The reviewed plan itself is untouched.
	for _, row := range state.ReorderPlan {
		assert.Equal(t, 70.0, row.OrderQty)
	}
}

func TestRunModifyWithExplicitFactor(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-4")
	require.NoError(t, m.Run(context.Background(), state))

	state.HumanDecision = domain.DecisionModify
	state.AdjustmentFactor = 2.0
	require.NoError(t, m.Run(context.Background(), state))

	for _, row := range state.FinalPlan {
		assert.Equal(t, 140.0, row.OrderQty)
	}
}

func TestRunRejectTerminatesWithEmptyPlan(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-5")
	require.NoError(t, m.Run(context.Background(), state))

	state.HumanDecision = domain.DecisionReject
	require.NoError(t, m.Run(context.Background(), state))

	assert.Equal(t, StatusTerminated, state.Status)
	assert.NotNil(t, state.FinalPlan)
	assert.Empty(t, state.FinalPlan)
	assert.Nil(t, state.Metrics, "no evaluation on a rejected run")
}

func TestRunPendingTerminatesButKeepsPlan(t *testing.T) {
	decide := func(ctx context.Context, state *State) (domain.Decision, float64, error) {
		return domain.DecisionPending, 0, nil
	}
	m := testMachine(t, decide)
	state := NewState("run-6")

	require.NoError(t, m.Run(context.Background(), state))

	// The quirk worth pinning: a pending review terminates the run yet
	// leaves the final plan populated. Status is the source of truth.
	assert.Equal(t, StatusTerminated, state.Status)
	assert.Len(t, state.FinalPlan, 4)
	assert.Nil(t, state.Metrics)
}

func TestRunDecisionFuncDrivesCompletion(t *testing.T) {
	decide := func(ctx context.Context, state *State) (domain.Decision, float64, error) {
		return domain.DecisionModify, 1.5, nil
	}
	m := testMachine(t, decide)
	state := NewState("run-7")

	require.NoError(t, m.Run(context.Background(), state))

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 1.5, state.AdjustmentFactor)
	for _, row := range state.FinalPlan {
		assert.Equal(t, 105.0, row.OrderQty, "round(70 * 1.5)")
	}
}

func TestRunCollectsCapacityFindings(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-8")
	require.NoError(t, m.Run(context.Background(), state))

	// Regional Storage runs at 96% in the demo network.
	require.Len(t, state.CapacityConstraints, 1)
	assert.Equal(t, "W004", state.CapacityConstraints[0].WarehouseID)

	require.NotNil(t, state.SurgePlan)
	assert.True(t, state.SurgePlan.CanAccommodate, "280 units of surge demand is nothing")
	assert.NotEmpty(t, state.ShipmentPlan)
	assert.Len(t, state.WarehouseStatus, 4)
}

func TestRunCancelledContext(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-9")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, m.Run(ctx, state))
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := NewMemoryCheckpointStore()
	m := testMachine(t, nil)
	state := NewState("run-10")
	require.NoError(t, m.Run(context.Background(), state))
	require.NoError(t, store.Save(context.Background(), state))

	// Resume from the deserialized copy, as a second process would.
	restored, err := store.Load(context.Background(), "run-10")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, StatusPaused, restored.Status)
	assert.Equal(t, state.CompletedStages, restored.CompletedStages)

	restored.HumanDecision = domain.DecisionApprove
	require.NoError(t, m.Run(context.Background(), restored))
	assert.Equal(t, StatusCompleted, restored.Status)
	require.Len(t, restored.FinalPlan, 4)

	require.NoError(t, store.Delete(context.Background(), "run-10"))
	gone, err := store.Load(context.Background(), "run-10")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStateAllAlertsOrder(t *testing.T) {
	state := NewState("run-11")
	state.DataAlerts = []string{"d"}
	state.ForecastAlerts = []string{"f"}
	state.BudgetAlerts = []string{"b"}
	state.SupplierAlerts = []string{"s"}
	state.CapacityAlerts = []string{"c"}

	assert.Equal(t, []string{"d", "f", "b", "s", "c"}, state.AllAlerts())
}

type stubAdvisory struct {
	signal forecast.AdvisorySignal
	err    error
}

func (s *stubAdvisory) Assess(ctx context.Context, prompt string) (forecast.AdvisorySignal, error) {
	return s.signal, s.err
}

func advisoryMachine(t *testing.T, advisory forecast.Advisory) *Machine {
	t.Helper()

	registry := sourcing.NewDemoRegistry()
	registry.SetStatus("S003", domain.SupplierActive)

	return NewMachine(Options{
		Loader:     loader.NewLoader(writeHistoryCSV(t)),
		Forecaster: forecast.NewForecaster(forecast.NewCache(time.Hour), nil, 7),
		Planner:    planner.NewPlanner(100000, 50, 7),
		Resolver:   sourcing.NewResolver(registry, rand.New(rand.NewSource(1))),
		Warehouses: capacity.NewDemoRegistry(),
		Advisory:   advisory,
		Decide: func(ctx context.Context, state *State) (domain.Decision, float64, error) {
			return domain.DecisionApprove, 0, nil
		},
		HorizonDays: 7,
	})
}

func TestRunEvaluateBoundsAdvisoryAdjustment(t *testing.T) {
	cases := []struct {
		name       string
		advisory   *stubAdvisory
		adjustment float64
		comment    string
	}{
		{
			name:       "overconfident signal is capped",
			advisory:   &stubAdvisory{signal: forecast.AdvisorySignal{ConfidenceAdjustment: 5.0}},
			adjustment: 1.15,
		},
		{
			name:       "pessimistic signal is floored",
			advisory:   &stubAdvisory{signal: forecast.AdvisorySignal{ConfidenceAdjustment: 0.1}},
			adjustment: 0.85,
		},
		{
			name: "in-range signal passes through",
			advisory: &stubAdvisory{signal: forecast.AdvisorySignal{
				ConfidenceAdjustment: 1.05,
				RiskComment:          "stable demand, low risk",
			}},
			adjustment: 1.05,
			comment:    "stable demand, low risk",
		},
		{
			name:       "advisory failure degrades to neutral",
			advisory:   &stubAdvisory{err: fmt.Errorf("advisory timeout")},
			adjustment: 1.0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := advisoryMachine(t, tc.advisory)
			state := NewState("run-advisory")

			require.NoError(t, m.Run(context.Background(), state))
			require.Equal(t, StatusCompleted, state.Status)
			require.NotNil(t, state.Metrics)

			// Constant demand of 10/day forecasts flat at 10.
			assert.Equal(t, 10.0, state.Metrics.MeanForecast)
			assert.Equal(t, tc.adjustment, state.Metrics.ConfidenceAdjustment)
			assert.Equal(t, round2(10.0*tc.adjustment), state.Metrics.AdjustedMeanForecast)
			assert.Equal(t, tc.comment, state.Metrics.RiskComment)
		})
	}
}

func TestFeatureEngineerRollingWindowIncludesCurrentDay(t *testing.T) {
	m := testMachine(t, nil)
	state := NewState("run-features")

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 10; day++ {
		state.ProcessedData = append(state.ProcessedData, domain.HistoryPoint{
			LocationID: "L1",
			ItemID:     "ITEM1",
			Date:       start.AddDate(0, 0, day),
			Quantity:   float64(day),
		})
	}

	require.NoError(t, m.runFeatureEngineer(context.Background(), state))

	// The first 7 rows lack a full lag window and are dropped.
	require.Len(t, state.Features, 3)

	first := state.Features[0]
	assert.Equal(t, 7.0, first.Quantity)
	assert.Equal(t, 6.0, first.Lag1)
	assert.Equal(t, 0.0, first.Lag7)
	// Rolling mean spans the current day and the six before it.
	assert.Equal(t, 4.0, first.Rolling7)

	last := state.Features[2]
	assert.Equal(t, 9.0, last.Quantity)
	assert.Equal(t, 6.0, last.Rolling7)
}
