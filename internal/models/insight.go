package models

import "time"

// Facets lists the distinct values available for dashboard filters.
type Facets struct {
	UnitID          string   `json:"unit_id"`
	Courses         []string `json:"courses"`
	Statuses        []string `json:"statuses"`
	Shifts          []string `json:"shifts"`
	Semesters       []string `json:"semesters"`
	Modalities      []string `json:"modalities"`
	CurrentSemester string   `json:"current_semester"`
	BranchName      string   `json:"branch_name"`
}

// KPISummary carries headline enrollment indicators for a semester.
type KPISummary struct {
	UnitID           string  `json:"unit_id"`
	Semester         string  `json:"semester"`
	PreviousSemester string  `json:"previous_semester"`
	Total            int     `json:"total"`
	PreviousTotal    int     `json:"previous_total"`
	GrowthRate       float64 `json:"growth_rate"`
	Captures         int     `json:"captures"`
	CaptureRate      float64 `json:"capture_rate"`
	Active           int     `json:"active"`
	RetentionRate    float64 `json:"retention_rate"`
	Dropouts         int     `json:"dropouts"`
	DropoutRate      float64 `json:"dropout_rate"`
}

// DistributionEntry is one bucket of a categorical breakdown.
type DistributionEntry struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// EvolutionPoint holds the totals of one term in a unit's history.
type EvolutionPoint struct {
	Semester      string `json:"semester"`
	Label         string `json:"label"`
	Total         int    `json:"total"`
	Captures      int    `json:"captures"`
	ReEnrollments int    `json:"re_enrollments"`
}

// DateCount is the number of enrollments recorded on one day.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SystemMetrics is a JSON snapshot of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio       float64   `json:"cache_hit_ratio"`
	CacheHits           uint64    `json:"cache_hits"`
	CacheMisses         uint64    `json:"cache_misses"`
	RequestsTotal       uint64    `json:"requests_total"`
	AverageRequestMs    float64   `json:"average_request_duration_ms"`
	StoreCalls          uint64    `json:"store_calls"`
	AverageStoreCallMs  float64   `json:"average_store_call_duration_ms"`
	ImportsCompleted    uint64    `json:"imports_completed"`
	ImportsDegraded     uint64    `json:"imports_degraded"`
	RecordsDiscarded    uint64    `json:"records_discarded"`
	RetrievalsTruncated uint64    `json:"retrievals_truncated"`
	Goroutines          int       `json:"goroutines"`
	GeneratedAt         time.Time `json:"generated_at"`
}
