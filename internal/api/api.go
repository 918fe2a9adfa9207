package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/supplyplan/internal/api/handlers"
	"github.com/andresuchdata/supplyplan/internal/api/middleware"
	"github.com/andresuchdata/supplyplan/internal/export"
	"github.com/andresuchdata/supplyplan/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Planning *service.Planning
	Exporter *export.Exporter
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Planning != nil {
		pipelineHandler := handlers.NewPipelineHandler(services.Planning, services.Exporter)
		pipelineGroup := apiGroup.Group("/pipeline")
		{
			pipelineGroup.POST("/run", pipelineHandler.StartRun)
			pipelineGroup.POST("/decision", pipelineHandler.SubmitDecision)
			pipelineGroup.GET("/runs", pipelineHandler.ListRuns)
			pipelineGroup.GET("/runs/:run_id", pipelineHandler.GetRun)
			pipelineGroup.GET("/runs/:run_id/alerts", pipelineHandler.GetAlerts)
			pipelineGroup.GET("/runs/:run_id/escalations", pipelineHandler.GetEscalations)
			pipelineGroup.POST("/runs/:run_id/export", pipelineHandler.Export)
			pipelineGroup.GET("/runs/:run_id/artifacts", pipelineHandler.ListArtifacts)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
