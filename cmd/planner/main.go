package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/supplyplan/internal/capacity"
	"github.com/andresuchdata/supplyplan/internal/config"
	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/export"
	"github.com/andresuchdata/supplyplan/internal/forecast"
	"github.com/andresuchdata/supplyplan/internal/loader"
	"github.com/andresuchdata/supplyplan/internal/pipeline"
	"github.com/andresuchdata/supplyplan/internal/planner"
	"github.com/andresuchdata/supplyplan/internal/sourcing"
	"github.com/andresuchdata/supplyplan/pkg/logger"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "planner",
		Usage: "Run one supply chain planning pipeline from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "history",
				Usage:   "Path to the demand history CSV",
				EnvVars: []string{"APP_HISTORY_FILE"},
			},
			&cli.StringFlag{
				Name:  "decision",
				Usage: "Review decision (approve, modify, reject); prompts when omitted",
			},
			&cli.Float64Flag{
				Name:  "factor",
				Usage: "Adjustment factor applied with the modify decision",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "Seed for the negotiation randomness, 0 uses the clock",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Export format after completion (csv or xlsx)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the final state as JSON",
			},
		},
		Action: runOnce,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("planner failed")
	}
}

func runOnce(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	historyFile := cfg.App.HistoryFile
	if path := c.String("history"); path != "" {
		historyFile = path
	}

	seed := c.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cache := forecast.NewCache(time.Duration(cfg.Forecast.CacheTTLHours) * time.Hour)
	llm := forecast.NewOpenAIClient(forecast.OpenAIOpts{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	var source forecast.Source
	var advisory forecast.Advisory
	if llm != nil {
		source = llm
		advisory = llm
	}

	machine := pipeline.NewMachine(pipeline.Options{
		Loader:      loader.NewLoader(historyFile),
		Forecaster:  forecast.NewForecaster(cache, source, cfg.Forecast.Horizon),
		Planner:     planner.NewPlanner(cfg.Planner.BudgetLimit, cfg.Planner.UnitCost, cfg.Planner.LeadTimeDays),
		Resolver:    sourcing.NewResolver(sourcing.NewDemoRegistry(), rand.New(rand.NewSource(seed))),
		Warehouses:  capacity.NewDemoRegistry(),
		Advisory:    advisory,
		Decide:      decisionPrompt(c.String("decision"), c.Float64("factor")),
		HorizonDays: cfg.Forecast.Horizon,
	})

	state := pipeline.NewState(uuid.NewString())
	if err := machine.Run(c.Context, state); err != nil {
		return err
	}

	printRun(state)

	if format := c.String("export"); format != "" {
		exporter := export.NewExporter(cfg.App.ExportDir, nil)
		var artifacts []string
		var err error
		switch format {
		case "csv":
			artifacts, err = exporter.WriteCSV(c.Context, state)
		case "xlsx":
			var path string
			path, err = exporter.WriteXLSX(c.Context, state)
			artifacts = []string{path}
		default:
			return fmt.Errorf("unknown export format %q", format)
		}
		if err != nil {
			return err
		}
		for _, a := range artifacts {
			fmt.Println("exported:", a)
		}
	}

	if c.Bool("json") {
		encoded, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
	}
	return nil
}

// decisionPrompt builds the review step for the terminal. A flag value
// short-circuits the prompt; an empty interactive answer leaves the
// decision pending, which terminates the run without discarding the plan.
func decisionPrompt(flagDecision string, flagFactor float64) pipeline.DecisionFunc {
	return func(ctx context.Context, state *pipeline.State) (domain.Decision, float64, error) {
		if flagDecision != "" {
			decision, err := domain.ParseDecision(flagDecision)
			if err != nil {
				return domain.DecisionNone, 0, err
			}
			return decision, flagFactor, nil
		}

		fmt.Printf("\nRun %s paused for review: %d plan rows, %d alerts, %d escalations\n",
			state.RunID, len(state.ReorderPlan), len(state.AllAlerts()), len(state.Escalations))
		for _, alert := range state.AllAlerts() {
			fmt.Println("  -", alert)
		}

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Decision [approve/modify/reject, empty keeps it pending]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return domain.DecisionPending, 0, nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return domain.DecisionPending, 0, nil
		}

		decision, err := domain.ParseDecision(line)
		if err != nil {
			return domain.DecisionNone, 0, err
		}

		factor := flagFactor
		if decision == domain.DecisionModify && factor == 0 {
			fmt.Print("Adjustment factor [default 1.1]: ")
			if raw, err := reader.ReadString('\n'); err == nil {
				if parsed, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64); perr == nil && parsed > 0 {
					factor = parsed
				}
			}
		}
		return decision, factor, nil
	}
}

func printRun(state *pipeline.State) {
	fmt.Printf("\nRun %s finished: %s\n", state.RunID, state.Status)
	fmt.Printf("  decision: %s\n", state.HumanDecision)
	fmt.Printf("  final plan rows: %d\n", len(state.FinalPlan))
	if state.Metrics != nil {
		fmt.Printf("  mean forecast: %.2f (adjusted %.2f)\n",
			state.Metrics.MeanForecast, state.Metrics.AdjustedMeanForecast)
	}
}
