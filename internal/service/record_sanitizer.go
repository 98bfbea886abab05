package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	"github.com/noah-isme/enrollment-insight-api/pkg/dates"
	"github.com/noah-isme/enrollment-insight-api/pkg/spreadsheet"
)

// Source column names, after header normalisation.
const (
	colStudentID      = "RA"
	colTermID         = "SEMESTRE"
	colEnrollmentDate = "DTMATRICULA"
	colModality       = "MODALIDADE"
)

// recordColumns binds the descriptive source columns to record fields.
var recordColumns = []struct {
	column string
	assign func(r *models.CanonicalRecord, v string)
}{
	{"ALUNO", func(r *models.CanonicalRecord, v string) { r.StudentName = v }},
	{"CURSO", func(r *models.CanonicalRecord, v string) { r.Course = v }},
	{"STATUS", func(r *models.CanonicalRecord, v string) { r.Status = v }},
	{"CODCOLIGADA", func(r *models.CanonicalRecord, v string) { r.CompanyCode = v }},
	{"CODFILIAL", func(r *models.CanonicalRecord, v string) { r.BranchCode = v }},
	{"FILIAL", func(r *models.CanonicalRecord, v string) { r.Branch = v }},
	{"HABILITACAO", func(r *models.CanonicalRecord, v string) { r.Qualification = v }},
	{"CPF", func(r *models.CanonicalRecord, v string) { r.TaxID = v }},
	{"EMAIL", func(r *models.CanonicalRecord, v string) { r.Email = v }},
	{"CEP", func(r *models.CanonicalRecord, v string) { r.PostalCode = v }},
	{"RUA", func(r *models.CanonicalRecord, v string) { r.Street = v }},
	{"NUMERO", func(r *models.CanonicalRecord, v string) { r.StreetNumber = v }},
	{"BAIRRO", func(r *models.CanonicalRecord, v string) { r.District = v }},
	{"TELEFONE1", func(r *models.CanonicalRecord, v string) { r.Phone1 = v }},
	{"TELEFONE2", func(r *models.CanonicalRecord, v string) { r.Phone2 = v }},
	{"QTDCAPTACAO", func(r *models.CanonicalRecord, v string) { r.IntakeType = v }},
	{"TIPOINGRESSO", func(r *models.CanonicalRecord, v string) { r.AdmissionType = v }},
	{"TURNO", func(r *models.CanonicalRecord, v string) { r.Shift = v }},
	{"PERIODO", func(r *models.CanonicalRecord, v string) { r.Period = v }},
	{"CODTURMA", func(r *models.CanonicalRecord, v string) { r.ClassCode = v }},
	{"CODPOLO", func(r *models.CanonicalRecord, v string) { r.CampusCode = v }},
	{"POLO", func(r *models.CanonicalRecord, v string) { r.Campus = v }},
	{"CIDADE", func(r *models.CanonicalRecord, v string) { r.City = v }},
}

// RecordSanitizer turns spreadsheet rows into canonical records. It holds no
// state besides its collaborators and is safe for concurrent use.
type RecordSanitizer struct {
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRecordSanitizer constructs a RecordSanitizer.
func NewRecordSanitizer(metrics *MetricsService, logger *zap.Logger) *RecordSanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordSanitizer{metrics: metrics, logger: logger}
}

// Sanitize converts every row of the table. Rows that cannot be represented
// are counted by reason and left out of the returned records.
func (s *RecordSanitizer) Sanitize(unitID string, table *spreadsheet.Table) models.SanitizeSummary {
	summary := models.SanitizeSummary{Discarded: map[models.DiscardReason]int{}}
	if table == nil {
		return summary
	}

	hasModality := false
	for _, h := range table.Headers {
		if h == colModality {
			hasModality = true
			break
		}
	}

	summary.Total = len(table.Rows)
	summary.Records = make([]models.CanonicalRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		result := s.SanitizeRow(unitID, i, row, hasModality)
		if !result.Kept() {
			summary.Discarded[result.Reason]++
			continue
		}
		summary.Records = append(summary.Records, *result.Record)
	}

	s.metrics.RecordDiscards(summary.Discarded)
	if discarded := summary.Total - len(summary.Records); discarded > 0 {
		s.logger.Info("rows discarded during sanitize",
			zap.String("unit_id", unitID),
			zap.Int("total", summary.Total),
			zap.Int("discarded", discarded),
			zap.Any("reasons", summary.Discarded),
		)
	}
	return summary
}

// SanitizeRow converts a single row. It never panics; a row that fails for
// any unexpected reason is reported as malformed.
func (s *RecordSanitizer) SanitizeRow(unitID string, index int, row map[string]interface{}, hasModality bool) (result models.SanitizeResult) {
	result.Row = index
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("malformed row skipped",
				zap.String("unit_id", unitID),
				zap.Int("row", index),
				zap.Any("panic", r),
			)
			result = models.SanitizeResult{Row: index, Reason: models.DiscardMalformedRow}
		}
	}()

	studentID := cellString(row[colStudentID])
	if studentID == "" {
		result.Reason = models.DiscardMissingStudentID
		return result
	}
	termID := cellString(row[colTermID])
	if termID == "" {
		result.Reason = models.DiscardMissingTermID
		return result
	}

	record := &models.CanonicalRecord{
		UnitID:    unitID,
		StudentID: studentID,
		TermID:    termID,
		Modality:  models.DefaultModality,
	}
	if day, ok := dates.Normalize(row[colEnrollmentDate], dates.DayFirst); ok {
		record.EnrollmentDate = day.BR()
	}
	if hasModality {
		record.Modality = cellString(row[colModality])
	}
	for _, col := range recordColumns {
		col.assign(record, cellString(row[col.column]))
	}

	result.Record = record
	return result
}

// cellString renders a raw cell as trimmed text. Missing values become "".
func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
