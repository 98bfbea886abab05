package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
	"github.com/noah-isme/enrollment-insight-api/pkg/response"
)

// multipartOverhead leaves room for boundaries and part headers on top of the
// file size limit.
const multipartOverhead = 1 << 20

type importSubmitter interface {
	Submit(ctx context.Context, req models.ImportRequest) (*models.ImportAck, error)
}

// ImportHandler accepts spreadsheet uploads for background mirroring.
type ImportHandler struct {
	service     importSubmitter
	maxFileSize int64
}

// NewImportHandler constructs the handler. maxFileSize <= 0 disables the
// request body ceiling.
func NewImportHandler(service importSubmitter, maxFileSize int64) *ImportHandler {
	return &ImportHandler{service: service, maxFileSize: maxFileSize}
}

// Upload godoc
// @Summary Replace a unit's enrollment records with a spreadsheet
// @Description The upload is acknowledged immediately; the records are replaced in the background.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param unitId path string true "Unit ID"
// @Param file formData file true "Spreadsheet (.xlsx or .csv)"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /units/{unitId}/imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "import service not configured"))
		return
	}
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	payload, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
		return
	}

	ack, err := h.service.Submit(c.Request.Context(), models.ImportRequest{
		UnitID:   c.Param("unitId"),
		Filename: fileHeader.Filename,
		Payload:  payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ack)
}
