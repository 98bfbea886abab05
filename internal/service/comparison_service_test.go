package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
)

func comparisonRequest() dto.ComparisonRequest {
	return dto.ComparisonRequest{UnitID: "unit-1", Semester: "2025.1", RefDate: "2025-06-15"}
}

func TestBuildQueryResolvesCohortFilter(t *testing.T) {
	svc := NewComparisonService(&fakeFetcher{}, nil, nil, nil, nil, 0)
	req := comparisonRequest()
	req.CaptureType = "CAPTACAO"
	req.Course = " DIREITO "
	req.Shift = "all"

	q, err := svc.BuildQuery(req)
	require.NoError(t, err)

	assert.Equal(t, "20251", q.Semester)
	assert.Equal(t, "2025-06-15", q.RefDate.ISO())
	assert.Equal(t, models.RecordFilter{
		UnitID:     "unit-1",
		TermIDs:    []string{"20251", "20241", "20231", "20221"},
		IntakeType: models.IntakeTypeCapture,
		Course:     "DIREITO",
	}, q.Filter)
}

func TestBuildQueryRejectsInvalidInput(t *testing.T) {
	svc := NewComparisonService(&fakeFetcher{}, nil, nil, nil, nil, 0)

	cases := map[string]struct {
		mutate  func(r *dto.ComparisonRequest)
		message string
	}{
		"missing unit":       {func(r *dto.ComparisonRequest) { r.UnitID = " " }, "unit_id is required"},
		"short semester":     {func(r *dto.ComparisonRequest) { r.Semester = "2025" }, "semester must look like YYYYS, for example 20251"},
		"missing semester":   {func(r *dto.ComparisonRequest) { r.Semester = "" }, "semester is required"},
		"bad ref date":       {func(r *dto.ComparisonRequest) { r.RefDate = "ontem" }, "ref_date must be a date such as 2025-06-15"},
		"bad capture type":   {func(r *dto.ComparisonRequest) { r.CaptureType = "veterano" }, "tipo_captacao must be one of all, captacao, rematricula"},
		"missing reference":  {func(r *dto.ComparisonRequest) { r.RefDate = "" }, "ref_date is required"},
		"cohort before 1000": {func(r *dto.ComparisonRequest) { r.Semester = "10011" }, "semester must look like YYYYS, for example 20251"},
		"padded year":        {func(r *dto.ComparisonRequest) { r.Semester = "00051" }, "semester must look like YYYYS, for example 20251"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := comparisonRequest()
			tc.mutate(&req)

			_, err := svc.BuildQuery(req)

			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestCompareRejectsEarlyCohortsAsClientError(t *testing.T) {
	svc := NewComparisonService(&fakeFetcher{}, nil, nil, nil, nil, 0)

	for _, semester := range []string{"10011", "00051"} {
		req := comparisonRequest()
		req.Semester = semester
		_, _, err := svc.Compare(context.Background(), req)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr), semester)
		assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status, semester)
	}

	req := comparisonRequest()
	req.Semester = "10031"
	result, _, err := svc.Compare(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"10031", "10021", "10011", "10001"}, result.Report.TargetTerms)
}

func TestCompareBuildsDenseReport(t *testing.T) {
	fetcher := &fakeFetcher{retrieval: Retrieval{Records: []models.StoredRecord{
		stored("a", "20231", "2023-06-15"),
		stored("b", "20231", "2023-06-15"),
	}}}
	svc := NewComparisonService(fetcher, nil, nil, nil, nil, 0)

	result, hit, err := svc.Compare(context.Background(), comparisonRequest())
	require.NoError(t, err)

	assert.False(t, hit)
	assert.False(t, result.Truncated)
	require.Len(t, result.Report.Rows, 60)
	assert.Equal(t, []string{"20251", "20241", "20231", "20221"}, result.Report.TargetTerms)
	assert.Equal(t, 2, result.Report.Retrieved)
	assert.Equal(t, 2, result.Report.Rows[58].StudentCount)
	require.Len(t, fetcher.filters, 1)
	assert.Equal(t, result.Report.TargetTerms, fetcher.filters[0].TermIDs)
}

func TestCompareServesRepeatedQueriesFromCache(t *testing.T) {
	fetcher := &fakeFetcher{retrieval: Retrieval{Records: []models.StoredRecord{stored("a", "20251", "2025-06-14")}}}
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewComparisonService(fetcher, nil, cache, nil, nil, time.Minute)

	first, hit, err := svc.Compare(context.Background(), comparisonRequest())
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.Compare(context.Background(), comparisonRequest())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, fetcher.filters, 1)
	assert.Equal(t, first.Report.Rows, second.Report.Rows)
	assert.Equal(t, first.Report.RefDate, second.Report.RefDate)

	require.NoError(t, cache.InvalidateUnit(context.Background(), "unit-1"))
	_, hit, err = svc.Compare(context.Background(), comparisonRequest())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"insight:unit-1:*"}, repo.patterns)
}

func TestCompareDoesNotCacheTruncatedRetrievals(t *testing.T) {
	fetcher := &fakeFetcher{retrieval: Retrieval{Truncated: true}}
	repo := &stubCacheRepo{}
	svc := NewComparisonService(fetcher, nil, NewCacheService(repo, nil, 0, nil, true), nil, nil, 0)

	result, _, err := svc.Compare(context.Background(), comparisonRequest())
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Len(t, result.Report.Rows, 60)
	assert.Empty(t, repo.store)

	_, hit, err := svc.Compare(context.Background(), comparisonRequest())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, fetcher.filters, 2)
}

func TestBuildRecordFilterCaptureTypes(t *testing.T) {
	filter, err := BuildRecordFilter("u", "rematricula", "", "ALL", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.IntakeTypeReEnrolled, filter.IntakeType)
	assert.Empty(t, filter.Status)

	filter, err = BuildRecordFilter("u", "all", "", "", "", "EAD")
	require.NoError(t, err)
	assert.Empty(t, filter.IntakeType)
	assert.Equal(t, "EAD", filter.Modality)
}

func TestReportCacheKeyVariesWithFilter(t *testing.T) {
	base := ReportCacheKey("comparison", "u", "20251@2025-06-15", models.RecordFilter{})
	filtered := ReportCacheKey("comparison", "u", "20251@2025-06-15", models.RecordFilter{Course: "DIREITO"})

	assert.NotEqual(t, base, filtered)
	assert.Regexp(t, `^insight:u:comparison:`, base)

	shifted := ReportCacheKey("comparison", "u", "x", models.RecordFilter{Course: "a:b"})
	split := ReportCacheKey("comparison", "u", "x", models.RecordFilter{Course: "a", Status: "b:"})
	assert.NotEqual(t, shifted, split)

	assert.NotEqual(t,
		ReportCacheKey("kpis", "u:kpis", "", models.RecordFilter{}),
		ReportCacheKey("kpis", "u", "kpis:", models.RecordFilter{}),
	)
}

func TestUnitCachePatternEscapesUnit(t *testing.T) {
	assert.Equal(t, "insight:unit-1:*", UnitCachePattern("unit-1"))
	assert.Equal(t, "insight:unit%2A1:*", UnitCachePattern("unit*1"))
	assert.Equal(t, "insight:a%3Ab:*", UnitCachePattern("a:b"))

	key := ReportCacheKey("comparison", "a:b", "", models.RecordFilter{})
	assert.True(t, strings.HasPrefix(key, strings.TrimSuffix(UnitCachePattern("a:b"), "*")))
	assert.False(t, strings.HasPrefix(key, "insight:a:"))
}
