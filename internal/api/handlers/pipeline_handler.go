package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/andresuchdata/supplyplan/internal/export"
	"github.com/andresuchdata/supplyplan/internal/service"
	"github.com/gin-gonic/gin"
)

type PipelineHandler struct {
	planning *service.Planning
	exporter *export.Exporter
}

func NewPipelineHandler(planning *service.Planning, exporter *export.Exporter) *PipelineHandler {
	return &PipelineHandler{planning: planning, exporter: exporter}
}

// StartRun kicks off a planning run. The response arrives once the run
// pauses for review; the summary carries the run_id the reviewer needs
// for the decision call.
func (h *PipelineHandler) StartRun(c *gin.Context) {
	summary, err := h.planning.StartRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type decisionRequest struct {
	RunID            string  `json:"run_id" binding:"required"`
	Decision         string  `json:"decision" binding:"required"`
	AdjustmentFactor float64 `json:"adjustment_factor"`
}

// SubmitDecision resumes a paused run with the reviewer's decision.
func (h *PipelineHandler) SubmitDecision(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.planning.SubmitDecision(c.Request.Context(), req.RunID, req.Decision, req.AdjustmentFactor)
	if err != nil {
		c.JSON(decisionStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func decisionStatusCode(err error) int {
	if errors.Is(err, service.ErrRunNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, domain.ErrInvalidDecision) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ListRuns returns the most recent runs from the audit trail.
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.planning.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrAuditUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns the full checkpointed state of a run.
func (h *PipelineHandler) GetRun(c *gin.Context) {
	state, err := h.planning.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		c.JSON(runStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetAlerts returns every alert a run accumulated across its stages.
func (h *PipelineHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.planning.Alerts(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		c.JSON(runStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetEscalations returns the escalation records of a run.
func (h *PipelineHandler) GetEscalations(c *gin.Context) {
	escalations, err := h.planning.Escalations(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		c.JSON(runStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"escalations": escalations, "count": len(escalations)})
}

// Export writes the run's artifacts to disk (and object storage when
// configured) in the requested format, csv by default.
func (h *PipelineHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export is not configured"})
		return
	}

	state, err := h.planning.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		c.JSON(runStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	format := c.DefaultQuery("format", "csv")
	var artifacts []string
	switch format {
	case "csv":
		artifacts, err = h.exporter.WriteCSV(c.Request.Context(), state)
	case "xlsx":
		var path string
		path, err = h.exporter.WriteXLSX(c.Request.Context(), state)
		artifacts = []string{path}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"format": format, "artifacts": artifacts})
}

// ListArtifacts returns the run's exported objects mirrored to object
// storage.
func (h *PipelineHandler) ListArtifacts(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export is not configured"})
		return
	}

	objects, err := h.exporter.ListArtifacts(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": objects, "count": len(objects)})
}

func runStatusCode(err error) int {
	if errors.Is(err, service.ErrRunNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
