package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
)

const (
	defaultWindowDays = 15
	defaultCohortSize = 4
	minTermLength     = 5
	minTermYear       = 1000
)

// ErrInvalidTerm is returned for semesters that are not YYYY followed by a suffix.
var ErrInvalidTerm = errors.New("invalid term")

// Monday-first weekday names.
var weekdayNames = map[string][7]string{
	"pt": {"seg", "ter", "qua", "qui", "sex", "sab", "dom"},
	"en": {"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
}

// AggregatorConfig shapes the dense report.
type AggregatorConfig struct {
	WindowDays    int
	Terms         int
	WeekdayLocale string
}

// CohortAggregator builds same-day year-over-year comparison reports. It is
// pure and safe for concurrent use.
type CohortAggregator struct {
	windowDays int
	terms      int
	weekdays   [7]string
}

// NewCohortAggregator constructs a CohortAggregator. Unknown locales fall
// back to Portuguese names.
func NewCohortAggregator(cfg AggregatorConfig) *CohortAggregator {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.Terms <= 0 {
		cfg.Terms = defaultCohortSize
	}
	names, ok := weekdayNames[strings.ToLower(cfg.WeekdayLocale)]
	if !ok {
		names = weekdayNames["pt"]
	}
	return &CohortAggregator{windowDays: cfg.WindowDays, terms: cfg.Terms, weekdays: names}
}

// ParseTerm splits a term such as "20251" into its year and suffix.
func ParseTerm(term string) (int, string, error) {
	term = strings.TrimSpace(term)
	if len(term) < minTermLength {
		return 0, "", fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidTerm, term, minTermLength)
	}
	year, err := strconv.Atoi(term[:4])
	if err != nil || year < minTermYear {
		return 0, "", fmt.Errorf("%w: %q does not start with a four-digit year", ErrInvalidTerm, term)
	}
	return year, term[len(term)-1:], nil
}

// TargetTerms returns the anchor term followed by the same-suffix terms of
// the preceding years, newest first. Every term of the cohort must keep a
// four-digit year.
func (a *CohortAggregator) TargetTerms(semester string) ([]string, error) {
	year, suffix, err := ParseTerm(semester)
	if err != nil {
		return nil, err
	}
	if oldest := year - (a.terms - 1); oldest < minTermYear {
		return nil, fmt.Errorf("%w: %q reaches back to year %d", ErrInvalidTerm, semester, oldest)
	}
	terms := make([]string, a.terms)
	for i := range terms {
		terms[i] = strconv.Itoa(year-i) + suffix
	}
	return terms, nil
}

type statKey struct {
	TermID string
	Day    dates.Day
}

// countDistinct groups records by (term, day) and counts distinct students.
// Records whose date cannot be read are skipped.
func countDistinct(records []models.StoredRecord) map[statKey]int {
	students := make(map[statKey]map[string]struct{})
	for _, rec := range records {
		if rec.EnrollmentDate == nil {
			continue
		}
		day, ok := dates.Normalize(*rec.EnrollmentDate, dates.ISO)
		if !ok {
			continue
		}
		key := statKey{TermID: strings.TrimSpace(rec.TermID), Day: day}
		set, exists := students[key]
		if !exists {
			set = make(map[string]struct{})
			students[key] = set
		}
		set[strings.TrimSpace(rec.StudentID)] = struct{}{}
	}

	counts := make(map[statKey]int, len(students))
	for key, set := range students {
		counts[key] = len(set)
	}
	return counts
}

// ProductionStats lists the distinct student counts per term and day,
// ordered by term then day.
func (a *CohortAggregator) ProductionStats(records []models.StoredRecord) []models.ProductionStat {
	counts := countDistinct(records)
	stats := make([]models.ProductionStat, 0, len(counts))
	for key, n := range counts {
		stats = append(stats, models.ProductionStat{TermID: key.TermID, Day: key.Day, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TermID != stats[j].TermID {
			return stats[i].TermID < stats[j].TermID
		}
		return stats[i].Day.Before(stats[j].Day)
	})
	return stats
}

// BuildReport produces windowDays x terms rows: days ascending, and for each
// day the cohort terms newest first. The i-th term is looked up on the day
// shifted back by i years.
func (a *CohortAggregator) BuildReport(q models.ComparisonQuery, records []models.StoredRecord) ([]models.ComparisonRow, error) {
	if q.RefDate.IsZero() {
		return nil, fmt.Errorf("reference date is required")
	}
	terms, err := a.TargetTerms(q.Semester)
	if err != nil {
		return nil, err
	}

	counts := countDistinct(records)
	window := dates.Window(q.RefDate, a.windowDays)
	rows := make([]models.ComparisonRow, 0, len(window)*len(terms))
	for _, day := range window {
		dayMonth := day.DayMonth()
		weekday := a.weekdayName(day)
		sortDate := day.ISO()
		for i, term := range terms {
			cutoff := day.ShiftYears(-i)
			rows = append(rows, models.ComparisonRow{
				RefDayMonth:  dayMonth,
				WeekdayName:  weekday,
				SemesterID:   term,
				StudentCount: counts[statKey{TermID: term, Day: cutoff}],
				SortDate:     sortDate,
			})
		}
	}
	return rows, nil
}

func (a *CohortAggregator) weekdayName(d dates.Day) string {
	// time.Weekday starts on Sunday.
	return a.weekdays[(int(d.Weekday())+6)%7]
}
