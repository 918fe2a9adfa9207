package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/pipeline"
	"github.com/andresuchdata/supplyplan/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrRunNotFound is returned when no checkpoint exists for a run ID.
var ErrRunNotFound = errors.New("run not found")

// RunRecorder persists an audit row per run. Implementations must be
// safe for concurrent use; a nil recorder disables auditing.
type RunRecorder interface {
	RecordStart(ctx context.Context, runID string, startedAt time.Time) error
	RecordOutcome(ctx context.Context, runID, status string, alertCount, escalationCount, planRows int) error
}

// Planning coordinates pipeline runs against shared supplier and
// warehouse registries. Runs execute one at a time: the registries are
// mutable (negotiation attempts accumulate) and the demo deployment has
// no need for parallel runs.
type Planning struct {
	machine     *pipeline.Machine
	checkpoints pipeline.CheckpointStore
	recorder    RunRecorder

	mu sync.Mutex
}

// NewPlanning builds the planning service. recorder may be nil.
func NewPlanning(machine *pipeline.Machine, checkpoints pipeline.CheckpointStore, recorder RunRecorder) *Planning {
	return &Planning{
		machine:     machine,
		checkpoints: checkpoints,
		recorder:    recorder,
	}
}

// RunSummary is the condensed view returned by run and decision calls.
type RunSummary struct {
	RunID           string   `json:"run_id"`
	Status          string   `json:"status"`
	Alerts          []string `json:"alerts"`
	AlertCount      int      `json:"alert_count"`
	EscalationCount int      `json:"escalation_count"`
	PlanRows        int      `json:"plan_rows"`
	FinalPlanRows   int      `json:"final_plan_rows"`
}

func summarize(state *pipeline.State) RunSummary {
	alerts := state.AllAlerts()
	return RunSummary{
		RunID:           state.RunID,
		Status:          state.Status,
		Alerts:          alerts,
		AlertCount:      len(alerts),
		EscalationCount: len(state.Escalations),
		PlanRows:        len(state.ReorderPlan),
		FinalPlanRows:   len(state.FinalPlan),
	}
}

// StartRun executes a fresh pipeline run up to the human review pause
// and checkpoints the paused state. The checkpoint is written only
// after the run succeeds, so a failed run never clobbers prior state.
func (p *Planning) StartRun(ctx context.Context) (RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runID := uuid.NewString()
	state := pipeline.NewState(runID)

	if p.recorder != nil {
		if err := p.recorder.RecordStart(ctx, runID, state.CreatedAt); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("run audit insert failed")
		}
	}

	if err := p.machine.Run(ctx, state); err != nil {
		state.Status = "failed"
		p.recordOutcome(ctx, state)
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}

	if err := p.checkpoints.Save(ctx, state); err != nil {
		return RunSummary{}, fmt.Errorf("checkpoint run %s: %w", runID, err)
	}
	p.recordOutcome(ctx, state)

	return summarize(state), nil
}

// DecisionResult is the completion payload after a reviewer decision.
type DecisionResult struct {
	Summary RunSummary      `json:"summary"`
	State   *pipeline.State `json:"state"`
}

// SubmitDecision validates the decision, resumes the checkpointed run
// and returns the finished state. Validation happens before any state
// is touched: a bad decision leaves the paused checkpoint exactly as it
// was, so the reviewer can retry.
func (p *Planning) SubmitDecision(ctx context.Context, runID, rawDecision string, adjustmentFactor float64) (DecisionResult, error) {
	decision, err := domain.ParseDecision(rawDecision)
	if err != nil {
		return DecisionResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.checkpoints.Load(ctx, runID)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if state == nil {
		return DecisionResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if state.Status != pipeline.StatusPaused {
		return DecisionResult{}, fmt.Errorf("run %s is %s, not awaiting review", runID, state.Status)
	}

	state.HumanDecision = decision
	if adjustmentFactor > 0 {
		state.AdjustmentFactor = adjustmentFactor
	}

	if err := p.machine.Run(ctx, state); err != nil {
		return DecisionResult{}, fmt.Errorf("resume run %s: %w", runID, err)
	}

	if err := p.checkpoints.Save(ctx, state); err != nil {
		return DecisionResult{}, fmt.Errorf("checkpoint run %s: %w", runID, err)
	}
	p.recordOutcome(ctx, state)

	return DecisionResult{Summary: summarize(state), State: state}, nil
}

// GetRun returns the current checkpointed state of a run.
func (p *Planning) GetRun(ctx context.Context, runID string) (*pipeline.State, error) {
	state, err := p.checkpoints.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return state, nil
}

// Alerts returns every alert accumulated by a run.
func (p *Planning) Alerts(ctx context.Context, runID string) ([]string, error) {
	state, err := p.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return state.AllAlerts(), nil
}

// Escalations returns the escalation records of a run.
func (p *Planning) Escalations(ctx context.Context, runID string) ([]domain.EscalationRecord, error) {
	state, err := p.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return state.Escalations, nil
}

// ErrAuditUnavailable is returned when no audit store backs the service.
var ErrAuditUnavailable = errors.New("run audit is not configured")

// RunAuditLister is implemented by recorders that can read the audit
// trail back.
type RunAuditLister interface {
	RecentRuns(ctx context.Context, limit int) ([]postgres.RunAudit, error)
}

// RecentRuns lists the most recent recorded runs, newest first.
func (p *Planning) RecentRuns(ctx context.Context, limit int) ([]postgres.RunAudit, error) {
	lister, ok := p.recorder.(RunAuditLister)
	if !ok {
		return nil, ErrAuditUnavailable
	}
	return lister.RecentRuns(ctx, limit)
}

func (p *Planning) recordOutcome(ctx context.Context, state *pipeline.State) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.RecordOutcome(ctx, state.RunID, state.Status,
		len(state.AllAlerts()), len(state.Escalations), len(state.FinalPlan))
	if err != nil {
		log.Warn().Err(err).Str("run_id", state.RunID).Msg("run audit update failed")
	}
}
