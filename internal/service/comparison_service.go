package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
)

const filterAll = "all"

type recordFetcher interface {
	FetchAll(ctx context.Context, filter models.RecordFilter) Retrieval
}

// ComparisonResult carries a report and how it was produced.
type ComparisonResult struct {
	Report    *models.ComparisonReport `json:"report"`
	Truncated bool                     `json:"truncated"`
}

// ComparisonService answers same-day cohort comparison queries.
type ComparisonService struct {
	records    recordFetcher
	aggregator *CohortAggregator
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewComparisonService constructs a ComparisonService.
func NewComparisonService(records recordFetcher, aggregator *CohortAggregator, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ComparisonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if aggregator == nil {
		aggregator = NewCohortAggregator(AggregatorConfig{})
	}
	return &ComparisonService{
		records:    records,
		aggregator: aggregator,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		cacheTTL:   cacheTTL,
	}
}

// BuildQuery validates the request and resolves it into a query whose filter
// already targets the comparison cohort.
func (s *ComparisonService) BuildQuery(req dto.ComparisonRequest) (models.ComparisonQuery, error) {
	req.UnitID = strings.TrimSpace(req.UnitID)
	req.Semester = NormalizeSemester(req.Semester)
	req.RefDate = strings.TrimSpace(req.RefDate)
	req.CaptureType = strings.ToLower(strings.TrimSpace(req.CaptureType))

	if err := s.validator.Struct(req); err != nil {
		return models.ComparisonQuery{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}

	terms, err := s.aggregator.TargetTerms(req.Semester)
	if err != nil {
		return models.ComparisonQuery{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "semester must look like YYYYS, for example 20251")
	}

	refDate, ok := dates.Normalize(req.RefDate, dates.ISO)
	if !ok {
		return models.ComparisonQuery{}, appErrors.Clone(appErrors.ErrValidation, "ref_date must be a date such as 2025-06-15")
	}

	filter, err := BuildRecordFilter(req.UnitID, req.CaptureType, req.Course, req.Status, req.Shift, req.Modality)
	if err != nil {
		return models.ComparisonQuery{}, err
	}
	filter.TermIDs = terms

	return models.ComparisonQuery{
		UnitID:   req.UnitID,
		Semester: req.Semester,
		RefDate:  refDate,
		Filter:   filter,
	}, nil
}

// Compare returns the dense comparison report for the request. The boolean
// reports a cache hit.
func (s *ComparisonService) Compare(ctx context.Context, req dto.ComparisonRequest) (*ComparisonResult, bool, error) {
	q, err := s.BuildQuery(req)
	if err != nil {
		return nil, false, err
	}

	cacheKey := ReportCacheKey("comparison", q.UnitID, q.Semester+"@"+q.RefDate.ISO(), q.Filter)
	var cached models.ComparisonReport
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &ComparisonResult{Report: &cached}, true, nil
	}

	retrieval := s.records.FetchAll(ctx, q.Filter)
	report, err := s.aggregate(q, retrieval.Records)
	if err != nil {
		s.logger.Error("comparison aggregation failed",
			zap.String("unit_id", q.UnitID),
			zap.String("semester", q.Semester),
			zap.String("ref_date", q.RefDate.ISO()),
			zap.Int("retrieved", len(retrieval.Records)),
			zap.Error(err),
		)
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build comparison report")
	}

	// A truncated retrieval must not be served from cache later.
	if !retrieval.Truncated {
		_ = s.cache.Set(ctx, cacheKey, report, s.cacheTTL)
	}
	return &ComparisonResult{Report: report, Truncated: retrieval.Truncated}, false, nil
}

func (s *ComparisonService) aggregate(q models.ComparisonQuery, records []models.StoredRecord) (report *models.ComparisonReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation panic: %v", r)
		}
	}()
	rows, err := s.aggregator.BuildReport(q, records)
	if err != nil {
		return nil, err
	}
	return &models.ComparisonReport{
		UnitID:      q.UnitID,
		Semester:    q.Semester,
		RefDate:     q.RefDate,
		TargetTerms: q.Filter.TermIDs,
		Retrieved:   len(records),
		Rows:        rows,
	}, nil
}

// NormalizeSemester trims the value and drops separators such as "2025.1".
func NormalizeSemester(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), ".", "")
}

// BuildRecordFilter maps the public filter vocabulary onto record columns.
// "all" and empty values do not filter.
func BuildRecordFilter(unitID, captureType, course, status, shift, modality string) (models.RecordFilter, error) {
	filter := models.RecordFilter{
		UnitID:   unitID,
		Course:   filterValue(course),
		Status:   filterValue(status),
		Shift:    filterValue(shift),
		Modality: filterValue(modality),
	}
	switch strings.ToLower(strings.TrimSpace(captureType)) {
	case "", filterAll:
	case "captacao":
		filter.IntakeType = models.IntakeTypeCapture
	case "rematricula":
		filter.IntakeType = models.IntakeTypeReEnrolled
	default:
		return models.RecordFilter{}, appErrors.Clone(appErrors.ErrValidation, "tipo_captacao must be one of all, captacao, rematricula")
	}
	return filter, nil
}

func filterValue(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.EqualFold(v, filterAll) {
		return ""
	}
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	name := fieldNames[fe.Field()]
	if name == "" {
		name = strings.ToLower(fe.Field())
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return name + " must not be empty"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	default:
		return name + " is invalid"
	}
}

var fieldNames = map[string]string{
	"UnitID":      "unit_id",
	"Semester":    "semester",
	"RefDate":     "ref_date",
	"CaptureType": "tipo_captacao",
	"Format":      "format",
	"Filename":    "filename",
	"Payload":     "file",
}
