package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

func stored(student, term, date string) models.StoredRecord {
	rec := models.StoredRecord{StudentID: student, TermID: term}
	if date != "" {
		rec.EnrollmentDate = strPtr(date)
	}
	return rec
}

// memoryStore is an in-memory record store partitioned by unit.
type memoryStore struct {
	mu         sync.Mutex
	units      map[string][]models.CanonicalRecord
	batchSizes []int
	deleteErr  error
	failBatch  map[int]bool
	inserts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{units: map[string][]models.CanonicalRecord{}, failBatch: map[int]bool{}}
}

func (m *memoryStore) DeleteByUnit(_ context.Context, unitID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	removed := len(m.units[unitID])
	delete(m.units, unitID)
	return int64(removed), nil
}

func (m *memoryStore) InsertBatch(_ context.Context, records []models.CanonicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	m.batchSizes = append(m.batchSizes, len(records))
	if m.failBatch[m.inserts] {
		return errors.New("store rejected batch")
	}
	for _, rec := range records {
		m.units[rec.UnitID] = append(m.units[rec.UnitID], rec)
	}
	return nil
}

func (m *memoryStore) snapshot(unitID string) []models.CanonicalRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CanonicalRecord, len(m.units[unitID]))
	copy(out, m.units[unitID])
	return out
}

// pagedReader serves a fixed record set page by page.
type pagedReader struct {
	records []models.StoredRecord
	failAt  int
	offsets []int
	filters []models.RecordFilter
}

func (p *pagedReader) FetchPage(_ context.Context, filter models.RecordFilter, offset, limit int) ([]models.StoredRecord, error) {
	p.offsets = append(p.offsets, offset)
	p.filters = append(p.filters, filter)
	if p.failAt > 0 && offset >= p.failAt {
		return nil, errors.New("unexpected status 500")
	}
	if offset >= len(p.records) {
		return []models.StoredRecord{}, nil
	}
	end := offset + limit
	if end > len(p.records) {
		end = len(p.records)
	}
	return p.records[offset:end], nil
}

// fakeFetcher returns a canned retrieval and records the filters it saw.
type fakeFetcher struct {
	retrieval Retrieval
	filters   []models.RecordFilter
}

func (f *fakeFetcher) FetchAll(_ context.Context, filter models.RecordFilter) Retrieval {
	f.filters = append(f.filters, filter)
	return f.retrieval
}

type stubCacheRepo struct {
	store    map[string][]byte
	patterns []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	s.store = nil
	return nil
}

type recordingInvalidator struct {
	units []string
}

func (r *recordingInvalidator) InvalidateUnit(_ context.Context, unitID string) error {
	r.units = append(r.units, unitID)
	return nil
}
