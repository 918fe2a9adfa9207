package pipeline

import (
	"time"

	"github.com/andresuchdata/supplyplan/internal/domain"
)

// Stage names, in execution order.
const (
	StageLoad            = "load"
	StageProfile         = "profile"
	StageFeatureEngineer = "feature_engineer"
	StageForecast        = "forecast"
	StageReorderPlan     = "reorder_plan"
	StageSourcing        = "sourcing"
	StageCapacity        = "capacity"
	StageHumanReview     = "human_review"
	StageEvaluate        = "evaluate"
)

// Run statuses.
const (
	StatusRunning    = "running"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusTerminated = "terminated"
)

// State is the single shared record threaded through all stages.
// Each stage merges its outputs additively; no stage replaces keys it
// does not own. It is created fresh per run, owned by the orchestrator,
// and serializable so a paused run can resume in another process. The
// human decision is the sole field external callers may inject between
// pause and resume.
type State struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Completed stages in execution order; resuming short-circuits these.
	CompletedStages []string `json:"completed_stages"`

	RawData       []domain.HistoryPoint `json:"raw_data,omitempty"`
	ProcessedData []domain.HistoryPoint `json:"processed_data,omitempty"`
	Features      []domain.FeatureRow   `json:"features,omitempty"`
	DataAlerts    []string              `json:"data_alerts,omitempty"`

	Forecasts          []domain.ForecastEntry `json:"forecasts,omitempty"`
	ForecastCacheStats domain.CacheStats      `json:"forecast_cache,omitempty"`
	ForecastAlerts     []string               `json:"forecast_alerts,omitempty"`

	ReorderPlan  []domain.ReorderPlanRow `json:"reorder_plan,omitempty"`
	Budget       domain.BudgetSummary    `json:"budget_constraints,omitempty"`
	BudgetAlerts []string                `json:"budget_alerts,omitempty"`

	SupplierStatus  []domain.SupplierRecord   `json:"supplier_status,omitempty"`
	ProcurementPlan []domain.ProcurementEntry `json:"procurement_plan,omitempty"`
	SupplierAlerts  []string                  `json:"supplier_alerts,omitempty"`
	Escalations     []domain.EscalationRecord `json:"escalations,omitempty"`

	WarehouseStatus     []domain.WarehouseRecord    `json:"warehouse_capacity,omitempty"`
	CapacityConstraints []domain.CapacityConstraint `json:"capacity_constraints,omitempty"`
	ShipmentPlan        []domain.ShipmentAllocation `json:"shipment_plan,omitempty"`
	SurgePlan           *domain.SurgePlan           `json:"surge_plan,omitempty"`
	CapacityAlerts      []string                    `json:"capacity_alerts,omitempty"`

	HumanDecision    domain.Decision           `json:"human_decision,omitempty"`
	AdjustmentFactor float64                   `json:"adjustment_factor,omitempty"`
	FinalPlan        []domain.ReorderPlanRow   `json:"final_plan"`
	Metrics          *domain.EvaluationMetrics `json:"metrics,omitempty"`
}

// NewState creates a fresh run state.
func NewState(runID string) *State {
	now := time.Now()
	return &State{
		RunID:     runID,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StageDone reports whether a stage has already run.
func (s *State) StageDone(name string) bool {
	for _, done := range s.CompletedStages {
		if done == name {
			return true
		}
	}
	return false
}

// MarkDone records a stage as completed.
func (s *State) MarkDone(name string) {
	if !s.StageDone(name) {
		s.CompletedStages = append(s.CompletedStages, name)
	}
	s.UpdatedAt = time.Now()
}

// AllAlerts flattens every alert list in stage order. Alerts are
// run-scoped and append-only; nothing is suppressed.
func (s *State) AllAlerts() []string {
	var all []string
	all = append(all, s.DataAlerts...)
	all = append(all, s.ForecastAlerts...)
	all = append(all, s.BudgetAlerts...)
	all = append(all, s.SupplierAlerts...)
	all = append(all, s.CapacityAlerts...)
	return all
}
