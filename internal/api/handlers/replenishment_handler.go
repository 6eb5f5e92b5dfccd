package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/scheduler"
	"github.com/andresuchdata/replenishment-engine/internal/service"
)

// ReplenishmentService is what the handler needs from the engine facade.
type ReplenishmentService interface {
	ListJobs(ctx context.Context, jobType string, limit int) ([]domain.ScheduledJobResult, error)
	JobStates() []scheduler.JobState
	RunJob(ctx context.Context, jobType string) (*domain.ScheduledJobResult, error)
	ActiveSuggestions(ctx context.Context, storeID string) ([]domain.ReplenishmentSuggestion, error)
	SubmitTrigger(ctx context.Context, req service.TriggerRequest) (*domain.ReplenishmentTrigger, error)
	PreviewForecast(ctx context.Context, req service.ForecastRequest) (*domain.Forecast, error)
}

type ReplenishmentHandler struct {
	service ReplenishmentService
}

func NewReplenishmentHandler(service ReplenishmentService) *ReplenishmentHandler {
	return &ReplenishmentHandler{service: service}
}

// ListJobs handles GET /jobs?job_type=&limit=
func (h *ReplenishmentHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	results, err := h.service.ListJobs(c.Request.Context(), c.Query("job_type"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}

// JobStates handles GET /jobs/state
func (h *ReplenishmentHandler) JobStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.service.JobStates()})
}

// RunJob handles POST /jobs/:type/run. The run completes before the
// response is written.
func (h *ReplenishmentHandler) RunJob(c *gin.Context) {
	res, err := h.service.RunJob(c.Request.Context(), c.Param("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// GetSuggestions handles GET /stores/:store/suggestions
func (h *ReplenishmentHandler) GetSuggestions(c *gin.Context) {
	suggestions, err := h.service.ActiveSuggestions(c.Request.Context(), c.Param("store"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": suggestions})
}

// SubmitTrigger handles POST /triggers
func (h *ReplenishmentHandler) SubmitTrigger(c *gin.Context) {
	var req service.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trigger, err := h.service.SubmitTrigger(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": trigger})
}

// PreviewForecast handles POST /forecast
func (h *ReplenishmentHandler) PreviewForecast(c *gin.Context) {
	var req service.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fc, err := h.service.PreviewForecast(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": fc})
}

func (h *ReplenishmentHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, scheduler.ErrUnknownJobType):
		status = http.StatusBadRequest
	case errors.Is(err, scheduler.ErrJobRunning):
		status = http.StatusConflict
	case errors.Is(err, scheduler.ErrStopped):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
