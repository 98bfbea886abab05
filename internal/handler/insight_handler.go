package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/middleware"
	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
	"github.com/noah-isme/enrollment-insight-api/pkg/response"
)

type insightService interface {
	Facets(ctx context.Context, unitID string) (*models.Facets, bool, error)
	KPIs(ctx context.Context, req dto.KPIRequest) (*models.KPISummary, bool, error)
	Distribution(ctx context.Context, req dto.KPIRequest, dimension string) ([]models.DistributionEntry, error)
	Evolution(ctx context.Context, req dto.KPIRequest) ([]models.EvolutionPoint, error)
	TopDates(ctx context.Context, req dto.KPIRequest, limit int) ([]models.DateCount, error)
}

// InsightHandler serves dashboard filters and indicators.
type InsightHandler struct {
	service insightService
}

// NewInsightHandler constructs the handler.
func NewInsightHandler(service insightService) *InsightHandler {
	return &InsightHandler{service: service}
}

// Facets godoc
// @Summary Distinct filter values of a unit
// @Tags Insights
// @Produce json
// @Param unitId path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /units/{unitId}/facets [get]
func (h *InsightHandler) Facets(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	facets, cacheHit, err := h.service.Facets(c.Request.Context(), c.Param("unitId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, facets, middleware.ExtractMeta(c))
}

// KPIs godoc
// @Summary Headline indicators for a semester
// @Tags Insights
// @Produce json
// @Param unitId path string true "Unit ID"
// @Param semester query string true "Term, e.g. 20251"
// @Param tipo_captacao query string false "all, captacao or rematricula"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /units/{unitId}/kpis [get]
func (h *InsightHandler) KPIs(c *gin.Context) {
	req, ok := h.bindKPIRequest(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.KPIs(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Distribution godoc
// @Summary Semester records grouped by shift, course or period
// @Tags Insights
// @Produce json
// @Param unitId path string true "Unit ID"
// @Param semester query string true "Term, e.g. 20251"
// @Param by query string false "shift (default), course or period"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /units/{unitId}/distribution [get]
func (h *InsightHandler) Distribution(c *gin.Context) {
	req, ok := h.bindKPIRequest(c)
	if !ok {
		return
	}
	dimension := strings.ToLower(strings.TrimSpace(c.DefaultQuery("by", service.DimensionShift)))
	entries, err := h.service.Distribution(c.Request.Context(), req, dimension)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"dimension": dimension})
}

// Evolution godoc
// @Summary Per-term totals for terms sharing the semester suffix
// @Tags Insights
// @Produce json
// @Param unitId path string true "Unit ID"
// @Param semester query string true "Term, e.g. 20251"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /units/{unitId}/evolution [get]
func (h *InsightHandler) Evolution(c *gin.Context) {
	req, ok := h.bindKPIRequest(c)
	if !ok {
		return
	}
	points, err := h.service.Evolution(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points)
}

// TopDates godoc
// @Summary Busiest enrollment days of a semester
// @Tags Insights
// @Produce json
// @Param unitId path string true "Unit ID"
// @Param semester query string true "Term, e.g. 20251"
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /units/{unitId}/top-dates [get]
func (h *InsightHandler) TopDates(c *gin.Context) {
	req, ok := h.bindKPIRequest(c)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
			return
		}
		limit = n
	}
	top, err := h.service.TopDates(c.Request.Context(), req, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, top)
}

func (h *InsightHandler) bindKPIRequest(c *gin.Context) (dto.KPIRequest, bool) {
	var req dto.KPIRequest
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return req, false
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return req, false
	}
	req.UnitID = c.Param("unitId")
	return req, true
}
