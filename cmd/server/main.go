package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/supplyplan/internal/api"
	"github.com/andresuchdata/supplyplan/internal/capacity"
	"github.com/andresuchdata/supplyplan/internal/config"
	"github.com/andresuchdata/supplyplan/internal/export"
	"github.com/andresuchdata/supplyplan/internal/forecast"
	"github.com/andresuchdata/supplyplan/internal/loader"
	"github.com/andresuchdata/supplyplan/internal/pipeline"
	"github.com/andresuchdata/supplyplan/internal/planner"
	"github.com/andresuchdata/supplyplan/internal/repository/postgres"
	"github.com/andresuchdata/supplyplan/internal/service"
	"github.com/andresuchdata/supplyplan/internal/sourcing"
	"github.com/andresuchdata/supplyplan/internal/storage"
	"github.com/andresuchdata/supplyplan/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	checkpoints, err := pipeline.NewCheckpointStore(cfg.Checkpoint)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize checkpoint store")
	}

	var recorder service.RunRecorder
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		runRepo := postgres.NewRunRepository(db)
		if err := runRepo.EnsureSchema(context.Background()); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to prepare audit schema")
		}
		recorder = runRepo
	}

	var store storage.ObjectStorage
	if cfg.Storage.Enabled {
		minioStore, err := storage.NewMinioStorage(context.Background(), cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		store = minioStore
	}

	llm := forecast.NewOpenAIClient(forecast.OpenAIOpts{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if llm == nil {
		logger.Log.Info().Msg("No LLM credentials, forecasts will use the statistical fallback")
	}

	machine := buildMachine(cfg, llm)
	planning := service.NewPlanning(machine, checkpoints, recorder)
	exporter := export.NewExporter(cfg.App.ExportDir, store)

	router := api.NewRouter(&api.Services{
		Planning: planning,
		Exporter: exporter,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func buildMachine(cfg *config.Config, llm *forecast.OpenAIClient) *pipeline.Machine {
	cache := forecast.NewCache(time.Duration(cfg.Forecast.CacheTTLHours) * time.Hour)

	var source forecast.Source
	var advisory forecast.Advisory
	if llm != nil {
		source = llm
		advisory = llm
	}

	return pipeline.NewMachine(pipeline.Options{
		Loader:      loader.NewLoader(cfg.App.HistoryFile),
		Forecaster:  forecast.NewForecaster(cache, source, cfg.Forecast.Horizon),
		Planner:     planner.NewPlanner(cfg.Planner.BudgetLimit, cfg.Planner.UnitCost, cfg.Planner.LeadTimeDays),
		Resolver:    sourcing.NewResolver(sourcing.NewDemoRegistry(), rand.New(rand.NewSource(time.Now().UnixNano()))),
		Warehouses:  capacity.NewDemoRegistry(),
		Advisory:    advisory,
		HorizonDays: cfg.Forecast.Horizon,
	})
}
