package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/middleware"
	"github.com/noah-isme/enrollment-insight-api/internal/service"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
	"github.com/noah-isme/enrollment-insight-api/pkg/response"
)

type comparisonService interface {
	Compare(ctx context.Context, req dto.ComparisonRequest) (*service.ComparisonResult, bool, error)
}

type comparisonExporter interface {
	ExportComparison(ctx context.Context, req dto.ExportRequest) (*service.ExportFile, error)
}

// ComparisonHandler serves the same-day cohort comparison.
type ComparisonHandler struct {
	service  comparisonService
	exporter comparisonExporter
}

// NewComparisonHandler constructs the handler.
func NewComparisonHandler(service comparisonService, exporter comparisonExporter) *ComparisonHandler {
	return &ComparisonHandler{service: service, exporter: exporter}
}

// Compare godoc
// @Summary Same-day enrollment comparison across four terms
// @Tags Comparison
// @Produce json
// @Param unitId path string true "Unit ID"
// @Param semester query string true "Anchor term, e.g. 20251"
// @Param ref_date query string true "Reference date (YYYY-MM-DD)"
// @Param tipo_captacao query string false "all, captacao or rematricula"
// @Param curso query string false "Course"
// @Param status query string false "Status"
// @Param turno query string false "Shift"
// @Param modalidade query string false "Modality"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /units/{unitId}/temporal-comparison [get]
func (h *ComparisonHandler) Compare(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.ComparisonRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	req.UnitID = c.Param("unitId")

	start := time.Now()
	result, cacheHit, err := h.service.Compare(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	report := result.Report
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetPartial(c, result.Truncated)
	meta := middleware.ExtractMeta(c)
	meta["unit_id"] = report.UnitID
	meta["semester"] = report.Semester
	meta["ref_date"] = report.RefDate.ISO()
	meta["target_terms"] = report.TargetTerms
	meta["retrieved"] = report.Retrieved
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, report.Rows, meta)
}

// Export godoc
// @Summary Download the comparison as a file
// @Tags Comparison
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param unitId path string true "Unit ID"
// @Param semester query string true "Anchor term, e.g. 20251"
// @Param ref_date query string true "Reference date (YYYY-MM-DD)"
// @Param format query string false "csv (default), pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /units/{unitId}/temporal-comparison/export [get]
func (h *ComparisonHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export not configured"))
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	req.UnitID = c.Param("unitId")

	file, err := h.exporter.ExportComparison(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
