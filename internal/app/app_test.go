package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/pkg/config"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
)

// memoryStore keeps records in insertion order and serves them the way the
// record store does: ISO dates and equality filters.
type memoryStore struct {
	mu      sync.Mutex
	records []models.CanonicalRecord
}

func (m *memoryStore) DeleteByUnit(_ context.Context, unitID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var removed int64
	for _, rec := range m.records {
		if rec.UnitID == unitID {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return removed, nil
}

func (m *memoryStore) InsertBatch(_ context.Context, records []models.CanonicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *memoryStore) FetchPage(_ context.Context, filter models.RecordFilter, offset, limit int) ([]models.StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	terms := map[string]bool{}
	for _, t := range filter.TermIDs {
		terms[t] = true
	}
	var matched []models.StoredRecord
	for _, rec := range m.records {
		if rec.UnitID != filter.UnitID || (len(terms) > 0 && !terms[rec.TermID]) {
			continue
		}
		if filter.IntakeType != "" && rec.IntakeType != filter.IntakeType {
			continue
		}
		stored := models.StoredRecord{StudentID: rec.StudentID, TermID: rec.TermID, IntakeType: rec.IntakeType, Course: rec.Course, Status: rec.Status, Shift: rec.Shift, Modality: rec.Modality}
		if day, ok := dates.Normalize(rec.EnrollmentDate, dates.DayFirst); ok {
			iso := day.ISO()
			stored.EnrollmentDate = &iso
		}
		matched = append(matched, stored)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func testConfig() *config.Config {
	gin.SetMode(gin.TestMode)
	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "test-secret", Expiration: time.Hour},
		Import:    config.ImportConfig{BatchSize: 2, Workers: 1, QueueSize: 4, MaxFileSizeBytes: 1 << 20},
	}
}

const uploadCSV = "RA;SEMESTRE;DTMATRICULA;QTDCAPTACAO\n" +
	"1;20251;15/06/2025;CAPTAÇÃO\n" +
	"2;20251;15/06/2025;REMATRÍCULA\n" +
	"2;20251;15/06/2025;REMATRÍCULA\n" +
	"3;20241;15/06/2024;CAPTAÇÃO\n" +
	";20241;15/06/2024;CAPTAÇÃO\n"

func uploadRequest(t *testing.T, unitID string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "base.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(uploadCSV))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/units/"+unitID+"/imports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type rowsEnvelope struct {
	Data []models.ComparisonRow `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestUploadThenCompare(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &memoryStore{}
	a := NewWithStore(testConfig(), nil, store, nil)
	a.Start(context.Background())
	router := a.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "recife"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool { return store.count() == 4 }, 5*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/units/recife/temporal-comparison?semester=20251&ref_date=2025-06-15", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope rowsEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 60)
	last := envelope.Data[56:]
	assert.Equal(t, "20251", last[0].SemesterID)
	assert.Equal(t, 2, last[0].StudentCount)
	assert.Equal(t, "20241", last[1].SemesterID)
	assert.Equal(t, 1, last[1].StudentCount)
	assert.Equal(t, false, envelope.Meta["partial"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/units/recife/temporal-comparison?semester=20251&ref_date=2025-06-15&tipo_captacao=captacao", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data[56].StudentCount)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/units/recife/temporal-comparison/export?semester=20251&ref_date=2025-06-15&format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	require.NoError(t, a.Close())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Enabled = true
	a := NewWithStore(cfg, nil, &memoryStore{}, nil)
	router := a.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/units/recife/facets", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := a.Auth.IssueToken("dashboard", "", 0)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/units/recife/facets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadWithoutStartedQueueIsUnavailable(t *testing.T) {
	a := NewWithStore(testConfig(), nil, &memoryStore{}, nil)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, uploadRequest(t, "recife"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunImportIsSynchronous(t *testing.T) {
	store := &memoryStore{}
	a := NewWithStore(testConfig(), nil, store, nil)

	report, err := a.RunImport(context.Background(), "recife", "base.csv", []byte(uploadCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, report.Inserted)
	assert.Equal(t, 2, report.Batches)
	assert.Equal(t, 4, store.count())
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Driver = "mongo"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestSpoolDirSweepsStaleUploads(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old-job.csv")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	fresh := filepath.Join(dir, "new-job.csv")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))

	cfg := testConfig()
	cfg.Import.SpoolDir = dir
	cfg.Import.SpoolTTL = 24 * time.Hour
	NewWithStore(cfg, nil, &memoryStore{}, nil)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
