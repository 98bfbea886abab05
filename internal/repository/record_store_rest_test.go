package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
)

func newRestStore(t *testing.T, handler http.HandlerFunc) *RestRecordStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRestRecordStore(RestStoreConfig{BaseURL: srv.URL + "/", APIKey: "service-key", Timeout: 5 * time.Second}, nil)
}

func TestRestRecordStoreDeleteByUnit(t *testing.T) {
	store := newRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/rest/v1/enrollment_records", r.URL.Path)
		assert.Equal(t, "eq.unit-1", r.URL.Query().Get("unit_id"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Range", "*/17")
		w.WriteHeader(http.StatusNoContent)
	})

	removed, err := store.DeleteByUnit(context.Background(), "unit-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17), removed)
}

func TestRestRecordStoreInsertBatchSendsISODates(t *testing.T) {
	var received []map[string]interface{}
	store := newRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	})

	err := store.InsertBatch(context.Background(), []models.CanonicalRecord{
		{UnitID: "unit-1", StudentID: "1001", TermID: "20251", EnrollmentDate: "15/06/2025", Course: "DIREITO"},
		{UnitID: "unit-1", StudentID: "1002", TermID: "20251"},
	})
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, "2025-06-15", received[0]["enrollment_date"])
	assert.Equal(t, "DIREITO", received[0]["course"])
	assert.Nil(t, received[1]["enrollment_date"])
}

func TestRestRecordStoreInsertBatchFailure(t *testing.T) {
	store := newRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"duplicate key"}`))
	})

	err := store.InsertBatch(context.Background(), []models.CanonicalRecord{{UnitID: "u", StudentID: "1", TermID: "20251"}})
	var statusErr *StoreStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Status)
	assert.Contains(t, statusErr.Body, "duplicate key")
}

func TestRestRecordStoreFetchPage(t *testing.T) {
	store := newRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.unit-1", q.Get("unit_id"))
		assert.Equal(t, `in.("20251","20241")`, q.Get("term_id"))
		assert.Equal(t, "eq.REMATRÍCULA", q.Get("intake_type"))
		assert.Empty(t, q.Get("course"))
		assert.Equal(t, "1000-1999", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(`[{"student_id":"1001","term_id":"20251","enrollment_date":"2025-06-15"},{"student_id":"1002","term_id":"20241","enrollment_date":null}]`))
	})

	records, err := store.FetchPage(context.Background(), models.RecordFilter{
		UnitID:     "unit-1",
		TermIDs:    []string{"20251", "20241"},
		IntakeType: models.IntakeTypeReEnrolled,
	}, 1000, 1000)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-06-15", *records[0].EnrollmentDate)
	assert.Nil(t, records[1].EnrollmentDate)
}

func TestRestRecordStoreFetchPageRejectsErrorStatus(t *testing.T) {
	store := newRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	})

	_, err := store.FetchPage(context.Background(), models.RecordFilter{UnitID: "unit-1"}, 0, 1000)
	var statusErr *StoreStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, statusErr.Status)
}

func TestContentRangeTotal(t *testing.T) {
	assert.Equal(t, int64(5), contentRangeTotal("*/5"))
	assert.Equal(t, int64(120), contentRangeTotal("0-9/120"))
	assert.Equal(t, int64(-1), contentRangeTotal("0-9/*"))
	assert.Equal(t, int64(-1), contentRangeTotal(""))
}
