package models

// CanonicalRecord is one student's enrollment snapshot for a term inside a
// unit, as mirrored into the record store. Every descriptive field defaults
// to an empty string.
type CanonicalRecord struct {
	UnitID         string `db:"unit_id" json:"unit_id"`
	StudentID      string `db:"student_id" json:"student_id"`
	TermID         string `db:"term_id" json:"term_id"`
	EnrollmentDate string `db:"enrollment_date" json:"enrollment_date"`
	StudentName    string `db:"student_name" json:"student_name"`
	Course         string `db:"course" json:"course"`
	Status         string `db:"status" json:"status"`
	Modality       string `db:"modality" json:"modality"`
	CompanyCode    string `db:"company_code" json:"company_code"`
	BranchCode     string `db:"branch_code" json:"branch_code"`
	Branch         string `db:"branch" json:"branch"`
	Qualification  string `db:"qualification" json:"qualification"`
	TaxID          string `db:"tax_id" json:"tax_id"`
	Email          string `db:"email" json:"email"`
	PostalCode     string `db:"postal_code" json:"postal_code"`
	Street         string `db:"street" json:"street"`
	StreetNumber   string `db:"street_number" json:"street_number"`
	District       string `db:"district" json:"district"`
	Phone1         string `db:"phone1" json:"phone1"`
	Phone2         string `db:"phone2" json:"phone2"`
	IntakeType     string `db:"intake_type" json:"intake_type"`
	AdmissionType  string `db:"admission_type" json:"admission_type"`
	Shift          string `db:"shift" json:"shift"`
	Period         string `db:"period" json:"period"`
	ClassCode      string `db:"class_code" json:"class_code"`
	CampusCode     string `db:"campus_code" json:"campus_code"`
	Campus         string `db:"campus" json:"campus"`
	City           string `db:"city" json:"city"`
}

// StoredRecord is the slim projection read back for reporting. EnrollmentDate
// carries whatever textual form the store returns.
type StoredRecord struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	TermID         string  `db:"term_id" json:"term_id"`
	EnrollmentDate *string `db:"enrollment_date" json:"enrollment_date"`
	IntakeType     string  `db:"intake_type" json:"intake_type"`
	Course         string  `db:"course" json:"course"`
	Status         string  `db:"status" json:"status"`
	Shift          string  `db:"shift" json:"shift"`
	Modality       string  `db:"modality" json:"modality"`
	Branch         string  `db:"branch" json:"branch"`
	Period         string  `db:"period" json:"period"`
}

// Intake type values as stored by the source system.
const (
	IntakeTypeCapture    = "CAPTAÇÃO"
	IntakeTypeReEnrolled = "REMATRÍCULA"
)

// DefaultModality applies when the source has no modality column at all.
const DefaultModality = "PRESENCIAL"

// RecordFilter holds the equality predicates applied at the retrieval
// boundary. Empty fields do not filter.
type RecordFilter struct {
	UnitID     string
	TermIDs    []string
	IntakeType string
	Course     string
	Status     string
	Shift      string
	Modality   string
}

// DiscardReason explains why a source row never reached the store.
type DiscardReason string

const (
	DiscardMissingStudentID DiscardReason = "missing_student_id"
	DiscardMissingTermID    DiscardReason = "missing_term_id"
	DiscardMalformedRow     DiscardReason = "malformed_row"
)

// SanitizeResult is the outcome for a single source row: either a record or a
// discard reason.
type SanitizeResult struct {
	Row    int
	Record *CanonicalRecord
	Reason DiscardReason
}

// Kept reports whether the row produced a record.
func (r SanitizeResult) Kept() bool {
	return r.Record != nil
}

// SanitizeSummary aggregates a sanitizer pass.
type SanitizeSummary struct {
	Records   []CanonicalRecord
	Total     int
	Discarded map[DiscardReason]int
}
