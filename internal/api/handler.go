package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toman-eng/devflow-metrics/internal/aggregator"
	"github.com/toman-eng/devflow-metrics/internal/collector"
	"github.com/toman-eng/devflow-metrics/internal/domain"
	apperrors "github.com/toman-eng/devflow-metrics/internal/errors"
)

// Handler handles API requests
type Handler struct {
	collector         collector.Collector
	service           *aggregator.Service
	defaultWindowDays int
	maxWindowDays     int
}

// NewHandler creates a new API handler
func NewHandler(col collector.Collector, svc *aggregator.Service, defaultWindowDays, maxWindowDays int) *Handler {
	return &Handler{
		collector:         col,
		service:           svc,
		defaultWindowDays: defaultWindowDays,
		maxWindowDays:     maxWindowDays,
	}
}

// GetProjectReport returns the full metric report for a project
// GET /api/v1/projects/:project/report
func (h *Handler) GetProjectReport(c *gin.Context) {
	project := c.Param("project")

	window, families, err := h.parseReportQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	in, err := h.collector.CollectProject(c.Request.Context(), project, window)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.service.Report(c.Request.Context(), in, families)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": report,
	})
}

// GetDeveloperReport returns the metric report for one developer
// within a project
// GET /api/v1/projects/:project/developers/:username/report
func (h *Handler) GetDeveloperReport(c *gin.Context) {
	project := c.Param("project")
	username := c.Param("username")

	window, families, err := h.parseReportQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	in, err := h.collector.CollectProject(c.Request.Context(), project, window)
	if err != nil {
		respondError(c, err)
		return
	}
	in.Subject = username

	report, err := h.service.Report(c.Request.Context(), in, families)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": report,
	})
}

// GetGroupReport returns the organization-level roll-up for a group
// GET /api/v1/groups/:group/report
func (h *Handler) GetGroupReport(c *gin.Context) {
	group := c.Param("group")

	window, _, err := h.parseReportQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	inputs, err := h.collector.CollectGroup(c.Request.Context(), group, window)
	if err != nil {
		respondError(c, err)
		return
	}

	rollup := aggregator.Rollup(group, window, inputs)

	c.JSON(http.StatusOK, gin.H{
		"data": rollup,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseReportQuery validates the days and families query parameters
func (h *Handler) parseReportQuery(c *gin.Context) (domain.TimeWindow, []string, error) {
	days := h.defaultWindowDays
	if daysStr := c.Query("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil {
			return domain.TimeWindow{}, nil, apperrors.NewBadRequestError("days must be an integer")
		}
		days = parsed
	}
	if days <= 0 || days > h.maxWindowDays {
		return domain.TimeWindow{}, nil, apperrors.NewBadRequestError(
			"days must be between 1 and " + strconv.Itoa(h.maxWindowDays))
	}

	var families []string
	if famStr := c.Query("families"); famStr != "" {
		for _, f := range strings.Split(famStr, ",") {
			if f = strings.TrimSpace(f); f != "" {
				families = append(families, f)
			}
		}
	}

	return domain.NewWindow(days, time.Now()), families, nil
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeForbidden:
			status = http.StatusForbidden
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeUnavailable:
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
