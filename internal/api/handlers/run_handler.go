package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/nba-datalake/internal/pipeline"
	"github.com/andresuchdata/nba-datalake/internal/repository/postgres"
	"github.com/andresuchdata/nba-datalake/internal/service"
)

type RunHandler struct {
	runService *service.RunService
}

func NewRunHandler(runService *service.RunService) *RunHandler {
	return &RunHandler{runService: runService}
}

type triggerRunRequest struct {
	Query    string `json:"query"`
	FileName string `json:"file_name"`
}

// TriggerRun runs the pipeline synchronously and returns its report. Step
// failures are part of the report, not an HTTP error.
func (h *RunHandler) TriggerRun(c *gin.Context) {
	var req triggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report := h.runService.Run(c.Request.Context(), pipeline.RunOptions{
		Query:    strings.TrimSpace(req.Query),
		FileName: strings.TrimSpace(req.FileName),
	})

	c.JSON(http.StatusOK, report)
}

// ListRuns returns recent runs from the ledger
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)

	runs, err := h.runService.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pipeline runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (h *RunHandler) GetRun(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	run, err := h.runService.GetRun(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrLedgerDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, postgres.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	case err != nil:
		log.Error().Err(err).Str("run_id", id).Msg("failed to get pipeline run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = 20
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}
