package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/internal/service"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target string, body *bytes.Buffer, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if body == nil {
		body = &bytes.Buffer{}
	}
	c.Request = httptest.NewRequest(method, target, body)
	c.Params = params
	return c, rec
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

type fakeImportSrv struct {
	last models.ImportRequest
	err  error
}

func (f *fakeImportSrv) Submit(_ context.Context, req models.ImportRequest) (*models.ImportAck, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImportAck{JobID: "job-1", UnitID: req.UnitID, Filename: req.Filename, Status: models.ImportStatusQueued}, nil
}

func TestImportHandlerAcceptsUpload(t *testing.T) {
	srv := &fakeImportSrv{}
	handler := NewImportHandler(srv, 1024)
	body, contentType := multipartBody(t, "file", "base.csv", []byte("RA;SEMESTRE\n1;20251\n"))
	c, rec := newTestContext(http.MethodPost, "/units/u1/imports", body, gin.Param{Key: "unitId", Value: "u1"})
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "u1", srv.last.UnitID)
	assert.Equal(t, "base.csv", srv.last.Filename)
	assert.Equal(t, []byte("RA;SEMESTRE\n1;20251\n"), srv.last.Payload)

	envelope := decodeEnvelope(t, rec)
	var ack models.ImportAck
	require.NoError(t, json.Unmarshal(envelope.Data, &ack))
	assert.Equal(t, "job-1", ack.JobID)
	assert.Equal(t, models.ImportStatusQueued, ack.Status)
}

func TestImportHandlerRequiresFile(t *testing.T) {
	handler := NewImportHandler(&fakeImportSrv{}, 0)
	body, contentType := multipartBody(t, "document", "base.csv", []byte("x"))
	c, rec := newTestContext(http.MethodPost, "/units/u1/imports", body, gin.Param{Key: "unitId", Value: "u1"})
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandlerRejectsOversizedBody(t *testing.T) {
	handler := NewImportHandler(&fakeImportSrv{}, 10)
	body, contentType := multipartBody(t, "file", "base.csv", bytes.Repeat([]byte("a"), 2<<20))
	c, rec := newTestContext(http.MethodPost, "/units/u1/imports", body, gin.Param{Key: "unitId", Value: "u1"})
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImportHandlerPropagatesQueueErrors(t *testing.T) {
	handler := NewImportHandler(&fakeImportSrv{err: appErrors.ErrQueueUnavailable}, 0)
	body, contentType := multipartBody(t, "file", "base.csv", []byte("x"))
	c, rec := newTestContext(http.MethodPost, "/units/u1/imports", body, gin.Param{Key: "unitId", Value: "u1"})
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	assert.Equal(t, appErrors.ErrQueueUnavailable.Status, rec.Code)
}

type fakeComparisonSrv struct {
	last   dto.ComparisonRequest
	result *service.ComparisonResult
	hit    bool
	err    error
}

func (f *fakeComparisonSrv) Compare(_ context.Context, req dto.ComparisonRequest) (*service.ComparisonResult, bool, error) {
	f.last = req
	return f.result, f.hit, f.err
}

type fakeExporter struct {
	last dto.ExportRequest
	file *service.ExportFile
	err  error
}

func (f *fakeExporter) ExportComparison(_ context.Context, req dto.ExportRequest) (*service.ExportFile, error) {
	f.last = req
	return f.file, f.err
}

func TestComparisonHandlerReturnsRowsWithMeta(t *testing.T) {
	srv := &fakeComparisonSrv{
		hit: true,
		result: &service.ComparisonResult{
			Truncated: true,
			Report: &models.ComparisonReport{
				UnitID:      "u1",
				Semester:    "20251",
				RefDate:     dates.New(2025, time.June, 15),
				TargetTerms: []string{"20251", "20241", "20231", "20221"},
				Retrieved:   3,
				Rows:        []models.ComparisonRow{{RefDayMonth: "15/06", WeekdayName: "dom", SemesterID: "20251", StudentCount: 3, SortDate: "2025-06-15"}},
			},
		},
	}
	handler := NewComparisonHandler(srv, nil)
	c, rec := newTestContext(http.MethodGet, "/units/u1/temporal-comparison?semester=20251&ref_date=2025-06-15&tipo_captacao=captacao&curso=DIREITO", nil, gin.Param{Key: "unitId", Value: "u1"})

	handler.Compare(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.ComparisonRequest{UnitID: "u1", Semester: "20251", RefDate: "2025-06-15", CaptureType: "captacao", Course: "DIREITO"}, srv.last)

	envelope := decodeEnvelope(t, rec)
	var rows []models.ComparisonRow
	require.NoError(t, json.Unmarshal(envelope.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].StudentCount)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, true, envelope.Meta["partial"])
	assert.Equal(t, "2025-06-15", envelope.Meta["ref_date"])
	assert.Len(t, envelope.Meta["target_terms"], 4)
}

func TestComparisonHandlerMapsValidationErrors(t *testing.T) {
	srv := &fakeComparisonSrv{err: appErrors.Clone(appErrors.ErrValidation, "ref_date is required")}
	handler := NewComparisonHandler(srv, nil)
	c, rec := newTestContext(http.MethodGet, "/units/u1/temporal-comparison?semester=20251", nil, gin.Param{Key: "unitId", Value: "u1"})

	handler.Compare(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "ref_date is required", envelope.Error["message"])
}

func TestComparisonHandlerExportStreamsAttachment(t *testing.T) {
	exporter := &fakeExporter{file: &service.ExportFile{Filename: "comparison_u1.csv", ContentType: "text/csv; charset=utf-8", Payload: []byte("data;dia\n")}}
	handler := NewComparisonHandler(&fakeComparisonSrv{}, exporter)
	c, rec := newTestContext(http.MethodGet, "/units/u1/temporal-comparison/export?semester=20251&ref_date=2025-06-15&format=csv", nil, gin.Param{Key: "unitId", Value: "u1"})

	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.last.Format)
	assert.Equal(t, "u1", exporter.last.UnitID)
	assert.Equal(t, "20251", exporter.last.Semester)
	assert.Equal(t, "attachment; filename=comparison_u1.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data;dia\n", rec.Body.String())
}

type fakeInsightSrv struct {
	facets    *models.Facets
	summary   *models.KPISummary
	entries   []models.DistributionEntry
	points    []models.EvolutionPoint
	top       []models.DateCount
	limit     int
	lastReq   dto.KPIRequest
	dimension string
	err       error
}

func (f *fakeInsightSrv) Facets(context.Context, string) (*models.Facets, bool, error) {
	return f.facets, false, f.err
}

func (f *fakeInsightSrv) KPIs(_ context.Context, req dto.KPIRequest) (*models.KPISummary, bool, error) {
	f.lastReq = req
	return f.summary, true, f.err
}

func (f *fakeInsightSrv) Distribution(_ context.Context, req dto.KPIRequest, dimension string) ([]models.DistributionEntry, error) {
	f.lastReq = req
	f.dimension = dimension
	return f.entries, f.err
}

func (f *fakeInsightSrv) Evolution(_ context.Context, req dto.KPIRequest) ([]models.EvolutionPoint, error) {
	f.lastReq = req
	return f.points, f.err
}

func (f *fakeInsightSrv) TopDates(_ context.Context, req dto.KPIRequest, limit int) ([]models.DateCount, error) {
	f.lastReq = req
	f.limit = limit
	return f.top, f.err
}

func TestInsightHandlerHistoryEndpoints(t *testing.T) {
	srv := &fakeInsightSrv{
		points: []models.EvolutionPoint{{Semester: "20251", Label: "2025.1", Total: 3}},
		top:    []models.DateCount{{Date: "2025-06-15", Count: 2}},
	}
	handler := NewInsightHandler(srv)
	unit := gin.Param{Key: "unitId", Value: "u1"}

	c, rec := newTestContext(http.MethodGet, "/units/u1/evolution?semester=20251", nil, unit)
	handler.Evolution(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"2025.1"`)

	c, rec = newTestContext(http.MethodGet, "/units/u1/top-dates?semester=20251&limit=5", nil, unit)
	handler.TopDates(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, srv.limit)
	assert.Contains(t, rec.Body.String(), `"date":"2025-06-15"`)

	c, rec = newTestContext(http.MethodGet, "/units/u1/top-dates?semester=20251&limit=many", nil, unit)
	handler.TopDates(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightHandlerEndpoints(t *testing.T) {
	srv := &fakeInsightSrv{
		facets:  &models.Facets{UnitID: "u1", CurrentSemester: "20251"},
		summary: &models.KPISummary{UnitID: "u1", Total: 10},
		entries: []models.DistributionEntry{{Name: "NOITE", Value: 4}},
	}
	handler := NewInsightHandler(srv)
	unit := gin.Param{Key: "unitId", Value: "u1"}

	c, rec := newTestContext(http.MethodGet, "/units/u1/facets", nil, unit)
	handler.Facets(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_semester":"20251"`)

	c, rec = newTestContext(http.MethodGet, "/units/u1/kpis?semester=20251&turno=NOITE", nil, unit)
	handler.KPIs(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NOITE", srv.lastReq.Shift)
	assert.Equal(t, true, decodeEnvelope(t, rec).Meta["cache_hit"])

	c, rec = newTestContext(http.MethodGet, "/units/u1/distribution?semester=20251&by=COURSE", nil, unit)
	handler.Distribution(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "course", srv.dimension)
	assert.Equal(t, "u1", srv.lastReq.UnitID)
}

func TestInsightHandlerPropagatesErrors(t *testing.T) {
	handler := NewInsightHandler(&fakeInsightSrv{err: appErrors.ErrStoreUnavailable})
	c, rec := newTestContext(http.MethodGet, "/units/u1/facets", nil, gin.Param{Key: "unitId", Value: "u1"})

	handler.Facets(c)

	assert.Equal(t, appErrors.ErrStoreUnavailable.Status, rec.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestMetricsHandlerReadiness(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, fakePinger{}).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, fakePinger{err: errors.New("dial tcp: refused")}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordRetrievalAbort()
	handler := NewMetricsHandler(metrics, nil)

	c, rec := newTestContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "retrieval_aborted_total 1")

	c, rec = newTestContext(http.MethodGet, "/metrics/summary", nil)
	handler.Summary(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retrievals_truncated":1`)
}
