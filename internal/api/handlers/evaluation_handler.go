package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	requestmodels "github.com/curalab/fedbench/internal/api/models"
	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
	"github.com/curalab/fedbench/internal/core/services"
	"github.com/curalab/fedbench/pkg/logger"
)

type EvaluationHandler struct {
	service ports.EvaluationService
}

func NewEvaluationHandler(service ports.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
	}
}

func (h *EvaluationHandler) CreateRun(c *gin.Context) {
	log := logger.WithComponent("evaluation_handler")

	var req requestmodels.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind create evaluation request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	run, err := h.service.CreateRun(c.Request.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create evaluation run")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, runResponse(run))
}

func (h *EvaluationHandler) GetRun(c *gin.Context) {
	log := logger.WithComponent("evaluation_handler")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("run_id", c.Param("id")).Msg("Invalid run ID")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to get evaluation run")
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	c.JSON(http.StatusOK, runResponse(run))
}

func (h *EvaluationHandler) ListRuns(c *gin.Context) {
	log := logger.WithComponent("evaluation_handler")

	runs, err := h.service.ListRuns(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list evaluation runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	responses := make([]requestmodels.EvaluationRunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, runResponse(run))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *EvaluationHandler) StartRun(c *gin.Context) {
	log := logger.WithComponent("evaluation_handler")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("run_id", c.Param("id")).Msg("Invalid run ID")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	if err := h.service.StartRun(c.Request.Context(), runID); err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to start evaluation run")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": runID.String(), "status": string(models.RunStatusRunning)})
}

func (h *EvaluationHandler) GetFoldResults(c *gin.Context) {
	log := logger.WithComponent("evaluation_handler")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	results, err := h.service.GetFoldResults(c.Request.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to get fold results")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get fold results"})
		return
	}

	responses := make([]requestmodels.FoldResultResponse, 0, len(results))
	for _, r := range results {
		resp := requestmodels.FoldResultResponse{
			ID:         r.ID.String(),
			Model:      r.Architecture.String(),
			FoldNumber: r.FoldNumber,
			Status:     string(r.Status),
			Error:      r.Error,
		}
		if r.Metrics != nil {
			resp.Metrics = &requestmodels.MetricsResponse{
				Accuracy:    r.Metrics.Accuracy,
				Sensitivity: r.Metrics.Sensitivity,
				Specificity: r.Metrics.Specificity,
				ROCAUC:      r.Metrics.ROCAUC,
				Degenerate:  r.Metrics.Degenerate,
			}
		}
		if r.Training != nil {
			resp.TrainingTime = r.Training.TrainingTimeMS
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

// GetReport serves the per-model mean-metrics table for a completed run,
// as JSON by default or CSV when ?format=csv.
func (h *EvaluationHandler) GetReport(c *gin.Context) {
	log := logger.WithComponent("evaluation_handler")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	if run.Status != models.RunStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Run has not completed", "status": string(run.Status)})
		return
	}

	rows := services.BuildReportFromList(run.Summaries)

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := services.WriteReportCSV(&buf, rows); err != nil {
			log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to render report CSV")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report"})
			return
		}
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, rows)
}

func runResponse(run *models.EvaluationRun) requestmodels.EvaluationRunResponse {
	archs := make([]string, len(run.Models))
	for i, a := range run.Models {
		archs[i] = a.String()
	}

	response := requestmodels.EvaluationRunResponse{
		ID:          run.ID.String(),
		Name:        run.Name,
		Description: run.Description,
		Status:      string(run.Status),
		DatasetURI:  run.DatasetURI,
		DatasetSize: run.DatasetSize,
		Models:      archs,
		Folds:       run.Folds,
		Seed:        run.Seed,
		Threshold:   run.Threshold,
		Error:       run.Error,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   run.UpdatedAt.Format(time.RFC3339),
	}

	for _, s := range run.Summaries {
		response.Summaries = append(response.Summaries, requestmodels.ModelSummaryResponse{
			Model:           s.Architecture.String(),
			Folds:           s.Folds,
			CompletedFolds:  s.CompletedFolds,
			FailedFolds:     s.FailedFolds,
			DegenerateFolds: s.DegenerateFolds,
			Accuracy:        s.Accuracy,
			Sensitivity:     s.Sensitivity,
			Specificity:     s.Specificity,
			ROCAUC:          s.ROCAUC,
		})
	}

	if run.StartedAt != nil {
		startedAt := run.StartedAt.Format(time.RFC3339)
		response.StartedAt = &startedAt
	}
	if run.CompletedAt != nil {
		completedAt := run.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	return response
}
