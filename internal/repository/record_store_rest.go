package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
)

const (
	restSelectColumns = "student_id,term_id,enrollment_date,intake_type,course,status,shift,modality,branch,period"
	maxErrorBody      = 512
)

// StoreStatusError reports a non-success response from the REST store.
type StoreStatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StoreStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// RestStoreConfig points the REST store at a PostgREST compatible endpoint.
type RestStoreConfig struct {
	BaseURL string
	APIKey  string
	Table   string
	Timeout time.Duration
}

// RestRecordStore talks to a PostgREST endpoint (for example a hosted
// Supabase project) using row filters and Range based pagination.
type RestRecordStore struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewRestRecordStore constructs a RestRecordStore. A nil client gets a
// default one bounded by cfg.Timeout.
func NewRestRecordStore(cfg RestStoreConfig, client *http.Client) *RestRecordStore {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = DefaultRecordTable
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1/" + url.PathEscape(table)
	return &RestRecordStore{client: client, endpoint: endpoint, apiKey: cfg.APIKey}
}

// restRecord overrides the enrollment date so the store receives an ISO
// date or null instead of the DD/MM/YYYY text.
type restRecord struct {
	models.CanonicalRecord
	EnrollmentDate *string `json:"enrollment_date"`
}

// DeleteByUnit removes every record of the unit. The count is -1 when the
// server does not report it.
func (s *RestRecordStore) DeleteByUnit(ctx context.Context, unitID string) (int64, error) {
	params := url.Values{}
	params.Set("unit_id", "eq."+unitID)

	req, err := s.newRequest(ctx, http.MethodDelete, params, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "return=minimal,count=exact")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("delete records for unit %s: %w", unitID, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, statusError("delete records", resp)
	}
	return contentRangeTotal(resp.Header.Get("Content-Range")), nil
}

// InsertBatch posts the records as one JSON array.
func (s *RestRecordStore) InsertBatch(ctx context.Context, records []models.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}
	payload := make([]restRecord, len(records))
	for i, rec := range records {
		payload[i] = restRecord{CanonicalRecord: rec}
		if day, ok := dates.Normalize(rec.EnrollmentDate, dates.DayFirst); ok {
			iso := day.ISO()
			payload[i].EnrollmentDate = &iso
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %d records: %w", len(records), err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert %d records: %w", len(records), err)
	}
	defer drain(resp.Body)

	if resp.StatusCode >= 400 {
		return statusError("insert records", resp)
	}
	return nil
}

// FetchPage reads one page using the Range header. Both 200 and 206 carry
// rows.
func (s *RestRecordStore) FetchPage(ctx context.Context, filter models.RecordFilter, offset, limit int) ([]models.StoredRecord, error) {
	params := url.Values{}
	params.Set("select", restSelectColumns)
	params.Set("unit_id", "eq."+filter.UnitID)
	if len(filter.TermIDs) > 0 {
		params.Set("term_id", "in.("+quoteList(filter.TermIDs)+")")
	}
	for column, value := range map[string]string{
		"intake_type": filter.IntakeType,
		"course":      filter.Course,
		"status":      filter.Status,
		"shift":       filter.Shift,
		"modality":    filter.Modality,
	} {
		if value != "" {
			params.Set(column, "eq."+value)
		}
	}
	params.Set("order", "id.asc")

	req, err := s.newRequest(ctx, http.MethodGet, params, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range-Unit", "items")
	req.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+limit-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch records page at offset %d: %w", offset, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, statusError("fetch records page", resp)
	}

	var records []models.StoredRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records page at offset %d: %w", offset, err)
	}
	return records, nil
}

// Ping issues an empty read to confirm the endpoint answers.
func (s *RestRecordStore) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", "unit_id")
	params.Set("limit", "0")
	req, err := s.newRequest(ctx, http.MethodGet, params, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping record store: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode >= 300 {
		return statusError("ping record store", resp)
	}
	return nil
}

func (s *RestRecordStore) newRequest(ctx context.Context, method string, params url.Values, body io.Reader) (*http.Request, error) {
	target := s.endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return req, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StoreStatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ",")
}

// contentRangeTotal extracts N from "*/N" or "0-9/N".
func contentRangeTotal(header string) int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return total
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
