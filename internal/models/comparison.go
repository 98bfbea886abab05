package models

import "github.com/noah-isme/enrollment-insight-api/pkg/dates"

// ComparisonQuery anchors a year-over-year same-day comparison for a unit.
type ComparisonQuery struct {
	UnitID   string
	Semester string
	RefDate  dates.Day
	Filter   RecordFilter
}

// ComparisonRow is one (day, term) cell of the dense comparison report.
type ComparisonRow struct {
	RefDayMonth  string `json:"ref_day_month"`
	WeekdayName  string `json:"weekday_name"`
	SemesterID   string `json:"semester_id"`
	StudentCount int    `json:"student_count"`
	SortDate     string `json:"sort_date"`
}

// ProductionStat counts distinct students enrolled in a term on a day.
type ProductionStat struct {
	TermID string    `json:"term_id"`
	Day    dates.Day `json:"day"`
	Count  int       `json:"count"`
}

// ComparisonReport wraps the rows with the cohort that produced them.
type ComparisonReport struct {
	UnitID      string          `json:"unit_id"`
	Semester    string          `json:"semester"`
	RefDate     dates.Day       `json:"ref_date"`
	TargetTerms []string        `json:"target_terms"`
	Retrieved   int             `json:"retrieved"`
	Rows        []ComparisonRow `json:"rows"`
}
