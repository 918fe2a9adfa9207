package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/supplyplan/internal/capacity"
	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/forecast"
	"github.com/andresuchdata/supplyplan/internal/loader"
	"github.com/andresuchdata/supplyplan/internal/planner"
	"github.com/andresuchdata/supplyplan/internal/sourcing"
	"github.com/rs/zerolog/log"
)

// defaultAdjustmentFactor is applied when a reviewer chooses "modify"
// without supplying an explicit factor.
const defaultAdjustmentFactor = 1.1

// DecisionFunc supplies a review decision synchronously, used by the
// batch runner. A service deployment leaves it nil and resumes the run
// later through a second Run call with the decision already on the state.
type DecisionFunc func(ctx context.Context, state *State) (domain.Decision, float64, error)

// Machine drives one planning run through its stages in a fixed order,
// pausing at human review. Run is written to be re-entered: a resumed
// state skips every stage already recorded in CompletedStages, so
// completed work is never recomputed and never diverges from what the
// reviewer saw.
type Machine struct {
	loader      *loader.Loader
	forecaster  *forecast.Forecaster
	planner     *planner.Planner
	resolver    *sourcing.Resolver
	capacity    *capacity.Planner
	warehouses  *capacity.Registry
	advisory    forecast.Advisory
	decide      DecisionFunc
	horizonDays int
}

// Options wires a machine's collaborators. Advisory and Decide are
// optional.
type Options struct {
	Loader      *loader.Loader
	Forecaster  *forecast.Forecaster
	Planner     *planner.Planner
	Resolver    *sourcing.Resolver
	Warehouses  *capacity.Registry
	Advisory    forecast.Advisory
	Decide      DecisionFunc
	HorizonDays int
}

// NewMachine builds a machine from its options.
func NewMachine(opts Options) *Machine {
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = 7
	}
	return &Machine{
		loader:      opts.Loader,
		forecaster:  opts.Forecaster,
		planner:     opts.Planner,
		resolver:    opts.Resolver,
		capacity:    capacity.NewPlanner(opts.Warehouses),
		warehouses:  opts.Warehouses,
		advisory:    opts.Advisory,
		decide:      opts.Decide,
		horizonDays: horizon,
	}
}

type stage struct {
	name string
	run  func(context.Context, *State) error
}

func (m *Machine) stages() []stage {
	return []stage{
		{StageLoad, m.runLoad},
		{StageProfile, m.runProfile},
		{StageFeatureEngineer, m.runFeatureEngineer},
		{StageForecast, m.runForecast},
		{StageReorderPlan, m.runReorderPlan},
		{StageSourcing, m.runSourcing},
		{StageCapacity, m.runCapacity},
	}
}

// Run executes the pipeline from wherever the state left off. On a
// fresh state every stage runs up to human review; with no decision
// available the run parks in StatusPaused and the caller checkpoints
// it. A later Run on the same state, now carrying a decision, skips the
// completed stages and finishes the run. The returned error means a
// stage failed and the state must not be checkpointed.
func (m *Machine) Run(ctx context.Context, state *State) error {
	state.Status = StatusRunning

	for _, st := range m.stages() {
		if state.StageDone(st.name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		if err := st.run(ctx, state); err != nil {
			return fmt.Errorf("stage %s: %w", st.name, err)
		}
		state.MarkDone(st.name)
		log.Debug().Str("stage", st.name).Dur("elapsed", time.Since(started)).Msg("stage complete")
	}

	if !state.StageDone(StageHumanReview) {
		if state.HumanDecision == domain.DecisionNone && m.decide != nil {
			decision, factor, err := m.decide(ctx, state)
			if err != nil {
				return fmt.Errorf("stage %s: %w", StageHumanReview, err)
			}
			state.HumanDecision = decision
			if factor > 0 {
				state.AdjustmentFactor = factor
			}
		}
		if state.HumanDecision == domain.DecisionNone {
			state.Status = StatusPaused
			state.UpdatedAt = time.Now()
			log.Info().Str("run_id", state.RunID).Msg("paused for human review")
			return nil
		}
		applyDecision(state)
		state.MarkDone(StageHumanReview)
	}

	if state.HumanDecision.Continues() {
		if !state.StageDone(StageEvaluate) {
			if err := m.runEvaluate(ctx, state); err != nil {
				return fmt.Errorf("stage %s: %w", StageEvaluate, err)
			}
			state.MarkDone(StageEvaluate)
		}
		state.Status = StatusCompleted
	} else {
		state.Status = StatusTerminated
	}
	state.UpdatedAt = time.Now()

	log.Info().
		Str("run_id", state.RunID).
		Str("status", state.Status).
		Str("decision", string(state.HumanDecision)).
		Int("final_plan_rows", len(state.FinalPlan)).
		Msg("run finished")
	return nil
}
