package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
)

const (
	defaultBranchName = "UNINASSAU"
	statusActive      = "ATIVO"
	notInformed       = "Não informado"
	defaultTopDates   = 20
	maxTopDates       = 366
)

// Distribution dimensions.
const (
	DimensionShift  = "shift"
	DimensionCourse = "course"
	DimensionPeriod = "period"
)

// dropoutStatuses lists the statuses counted as dropouts. A status matches
// when either string contains the other.
var dropoutStatuses = []string{
	"TRANCADO",
	"CANCELADO",
	"ABANDONO",
	"TRANSFERENCIA PARA EAD",
	"TRANSFERENCIA EXTERNA",
	"TRANSFERENCIA INTERNA",
	"TRANSFERENCIA ENTRE UNIDADES",
	"EVADIDO",
	"DESISTENTE",
}

// InsightService serves dashboard facets and headline indicators.
type InsightService struct {
	records   recordFetcher
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewInsightService constructs an InsightService.
func NewInsightService(records recordFetcher, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InsightService{records: records, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Facets lists the distinct filter values present in a unit's records.
func (s *InsightService) Facets(ctx context.Context, unitID string) (*models.Facets, bool, error) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unit_id is required")
	}

	cacheKey := ReportCacheKey("facets", unitID, "", models.RecordFilter{})
	var cached models.Facets
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	retrieval := s.records.FetchAll(ctx, models.RecordFilter{UnitID: unitID})
	facets := BuildFacets(unitID, retrieval.Records)
	if !retrieval.Truncated {
		_ = s.cache.Set(ctx, cacheKey, facets, s.cacheTTL)
	}
	return facets, false, nil
}

// KPIs computes headline indicators of a semester against the same term of
// the previous year.
func (s *InsightService) KPIs(ctx context.Context, req dto.KPIRequest) (*models.KPISummary, bool, error) {
	filter, semester, previous, err := s.resolve(req)
	if err != nil {
		return nil, false, err
	}

	cacheKey := ReportCacheKey("kpis", filter.UnitID, semester, filter)
	var cached models.KPISummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	filter.TermIDs = []string{semester, previous}
	retrieval := s.records.FetchAll(ctx, filter)
	summary := BuildKPISummary(filter.UnitID, semester, previous, retrieval.Records)
	if !retrieval.Truncated {
		_ = s.cache.Set(ctx, cacheKey, summary, s.cacheTTL)
	}
	return summary, false, nil
}

// Distribution counts the semester's records by shift, course or period.
func (s *InsightService) Distribution(ctx context.Context, req dto.KPIRequest, dimension string) ([]models.DistributionEntry, error) {
	switch dimension {
	case DimensionShift, DimensionCourse, DimensionPeriod:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "dimension must be one of shift, course, period")
	}
	filter, semester, _, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	filter.TermIDs = []string{semester}
	retrieval := s.records.FetchAll(ctx, filter)
	return BuildDistribution(retrieval.Records, dimension), nil
}

// Evolution lists per-term totals of every term sharing the semester's
// suffix. The capture type filter is ignored so both intake kinds are
// counted.
func (s *InsightService) Evolution(ctx context.Context, req dto.KPIRequest) ([]models.EvolutionPoint, error) {
	filter, semester, _, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	filter.IntakeType = ""
	retrieval := s.records.FetchAll(ctx, filter)
	return BuildEvolution(retrieval.Records, semester[len(semester)-1:]), nil
}

// TopDates returns the busiest enrollment days of the semester, at most
// limit entries (20 when limit is zero).
func (s *InsightService) TopDates(ctx context.Context, req dto.KPIRequest, limit int) ([]models.DateCount, error) {
	if limit < 0 || limit > maxTopDates {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("limit must be between 1 and %d", maxTopDates))
	}
	if limit == 0 {
		limit = defaultTopDates
	}
	filter, semester, _, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	filter.TermIDs = []string{semester}
	retrieval := s.records.FetchAll(ctx, filter)
	return BuildTopDates(retrieval.Records, limit), nil
}

func (s *InsightService) resolve(req dto.KPIRequest) (models.RecordFilter, string, string, error) {
	req.UnitID = strings.TrimSpace(req.UnitID)
	req.Semester = NormalizeSemester(req.Semester)
	req.CaptureType = strings.ToLower(strings.TrimSpace(req.CaptureType))
	if err := s.validator.Struct(req); err != nil {
		return models.RecordFilter{}, "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	year, suffix, err := ParseTerm(req.Semester)
	if err != nil {
		return models.RecordFilter{}, "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "semester must look like YYYYS, for example 20251")
	}
	filter, err := BuildRecordFilter(req.UnitID, req.CaptureType, req.Course, req.Status, req.Shift, req.Modality)
	if err != nil {
		return models.RecordFilter{}, "", "", err
	}
	return filter, req.Semester, strconv.Itoa(year-1) + suffix, nil
}

// BuildFacets derives sorted distinct values from the records.
func BuildFacets(unitID string, records []models.StoredRecord) *models.Facets {
	courses := map[string]struct{}{}
	statuses := map[string]struct{}{}
	shifts := map[string]struct{}{}
	semesters := map[string]struct{}{}
	modalities := map[string]struct{}{}
	branch := ""

	for _, rec := range records {
		addNonEmpty(courses, rec.Course)
		addNonEmpty(statuses, rec.Status)
		addNonEmpty(shifts, rec.Shift)
		addNonEmpty(semesters, rec.TermID)
		addNonEmpty(modalities, rec.Modality)
		if branch == "" {
			branch = strings.TrimSpace(rec.Branch)
		}
	}
	if branch == "" {
		branch = defaultBranchName
	}

	facets := &models.Facets{
		UnitID:     unitID,
		Courses:    sortedKeys(courses),
		Statuses:   sortedKeys(statuses),
		Shifts:     sortedKeys(shifts),
		Semesters:  sortedKeys(semesters),
		Modalities: sortedKeys(modalities),
		BranchName: branch,
	}
	if n := len(facets.Semesters); n > 0 {
		facets.CurrentSemester = facets.Semesters[n-1]
	}
	return facets
}

// BuildKPISummary computes the indicators from records of both terms.
func BuildKPISummary(unitID, semester, previous string, records []models.StoredRecord) *models.KPISummary {
	summary := &models.KPISummary{UnitID: unitID, Semester: semester, PreviousSemester: previous}
	for _, rec := range records {
		switch strings.TrimSpace(rec.TermID) {
		case previous:
			summary.PreviousTotal++
		case semester:
			summary.Total++
			if rec.IntakeType == models.IntakeTypeCapture {
				summary.Captures++
			}
			if rec.Status == statusActive {
				summary.Active++
			}
			if isDropout(rec.Status) {
				summary.Dropouts++
			}
		}
	}

	switch {
	case summary.PreviousTotal > 0:
		summary.GrowthRate = percent(summary.Total-summary.PreviousTotal, summary.PreviousTotal)
	case summary.Total > 0:
		summary.GrowthRate = 100
	}
	summary.CaptureRate = percent(summary.Captures, summary.Total)
	summary.RetentionRate = percent(summary.Active, summary.Total)
	summary.DropoutRate = percent(summary.Dropouts, summary.Total)
	return summary
}

// BuildDistribution groups records by the dimension, largest bucket first.
// Periods are listed in period order instead and records without one are
// left out.
func BuildDistribution(records []models.StoredRecord, dimension string) []models.DistributionEntry {
	if dimension == DimensionPeriod {
		return buildPeriodDistribution(records)
	}
	counts := map[string]int{}
	for _, rec := range records {
		value := rec.Shift
		if dimension == DimensionCourse {
			value = rec.Course
		}
		value = strings.TrimSpace(value)
		if value == "" {
			value = notInformed
		}
		counts[value]++
	}
	entries := make([]models.DistributionEntry, 0, len(counts))
	for name, n := range counts {
		entries = append(entries, models.DistributionEntry{Name: name, Value: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func buildPeriodDistribution(records []models.StoredRecord) []models.DistributionEntry {
	counts := map[string]int{}
	for _, rec := range records {
		if p := strings.TrimSpace(rec.Period); p != "" {
			counts[p]++
		}
	}
	periods := make([]string, 0, len(counts))
	for p := range counts {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		a, errA := strconv.Atoi(periods[i])
		b, errB := strconv.Atoi(periods[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return periods[i] < periods[j]
	})
	entries := make([]models.DistributionEntry, 0, len(periods))
	for _, p := range periods {
		entries = append(entries, models.DistributionEntry{Name: p + "º Período", Value: counts[p]})
	}
	return entries
}

// BuildEvolution totals records per term for the terms ending in suffix,
// oldest term first.
func BuildEvolution(records []models.StoredRecord, suffix string) []models.EvolutionPoint {
	index := map[string]*models.EvolutionPoint{}
	for _, rec := range records {
		term := strings.TrimSpace(rec.TermID)
		if term == "" || !strings.HasSuffix(term, suffix) {
			continue
		}
		point, ok := index[term]
		if !ok {
			point = &models.EvolutionPoint{Semester: term, Label: termLabel(term)}
			index[term] = point
		}
		point.Total++
		if rec.IntakeType == models.IntakeTypeCapture {
			point.Captures++
		}
	}
	points := make([]models.EvolutionPoint, 0, len(index))
	for _, point := range index {
		point.ReEnrollments = point.Total - point.Captures
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Semester < points[j].Semester })
	return points
}

// BuildTopDates counts records per enrollment day, busiest first with ties
// in date order. Records without a readable date are skipped.
func BuildTopDates(records []models.StoredRecord, limit int) []models.DateCount {
	counts := map[string]int{}
	for _, rec := range records {
		if rec.EnrollmentDate == nil {
			continue
		}
		day, ok := dates.Normalize(*rec.EnrollmentDate, dates.ISO)
		if !ok {
			continue
		}
		counts[day.ISO()]++
	}
	top := make([]models.DateCount, 0, len(counts))
	for date, n := range counts {
		top = append(top, models.DateCount{Date: date, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Date < top[j].Date
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

// termLabel renders "20251" as "2025.1".
func termLabel(term string) string {
	if len(term) < minTermLength {
		return term
	}
	return term[:4] + "." + term[len(term)-1:]
}

func isDropout(status string) bool {
	s := strings.ToUpper(strings.TrimSpace(status))
	if s == "" {
		return false
	}
	for _, candidate := range dropoutStatuses {
		if strings.Contains(s, candidate) || strings.Contains(candidate, s) {
			return true
		}
	}
	return false
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func addNonEmpty(set map[string]struct{}, value string) {
	if v := strings.TrimSpace(value); v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
