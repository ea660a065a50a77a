package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/nba-datalake/internal/awsutil"
	"github.com/andresuchdata/nba-datalake/internal/query"
	"github.com/andresuchdata/nba-datalake/internal/service"
)

type QueryHandler struct {
	queryService *service.QueryService
}

func NewQueryHandler(queryService *service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

type submitQueryRequest struct {
	SQL string `json:"sql" binding:"required"`
}

// SubmitQuery starts a query and returns its execution handle without waiting.
func (h *QueryHandler) SubmitQuery(c *gin.Context) {
	var req submitQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sql is required"})
		return
	}

	exec, err := h.queryService.Submit(c.Request.Context(), req.SQL)
	if errors.Is(err, query.ErrEmptyQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to submit query")
		c.JSON(http.StatusBadGateway, gin.H{"error": awsutil.Describe(err)})
		return
	}

	c.JSON(http.StatusAccepted, exec)
}

// GetStatus reports the state of one execution
func (h *QueryHandler) GetStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	status, err := h.queryService.Status(c.Request.Context(), id)
	if errors.Is(err, service.ErrNoExecution) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("execution_id", id).Msg("failed to get query status")
		if awsutil.ErrorCode(err) == "InvalidRequestException" {
			c.JSON(http.StatusNotFound, gin.H{"error": awsutil.Describe(err)})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": awsutil.Describe(err)})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *QueryHandler) ListExecutions(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)

	execs, err := h.queryService.Executions(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list query executions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list executions"})
		return
	}

	c.JSON(http.StatusOK, execs)
}

// ClearExecutions drops the remembered execution handles.
func (h *QueryHandler) ClearExecutions(c *gin.Context) {
	if err := h.queryService.ClearExecutions(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("failed to clear query executions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear executions"})
		return
	}

	c.Status(http.StatusNoContent)
}
