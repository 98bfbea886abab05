package dto

// ComparisonRequest captures the query string of the comparison endpoints.
type ComparisonRequest struct {
	UnitID      string `form:"-" json:"unit_id" validate:"required,max=64"`
	Semester    string `form:"semester" json:"semester" validate:"required"`
	RefDate     string `form:"ref_date" json:"ref_date" validate:"required"`
	CaptureType string `form:"tipo_captacao" json:"tipo_captacao" validate:"omitempty,oneof=all captacao rematricula"`
	Course      string `form:"curso" json:"curso"`
	Status      string `form:"status" json:"status"`
	Shift       string `form:"turno" json:"turno"`
	Modality    string `form:"modalidade" json:"modalidade"`
}

// KPIRequest captures the query string of the KPI and distribution endpoints.
// RefDate is not used there.
type KPIRequest struct {
	UnitID      string `form:"-" json:"unit_id" validate:"required,max=64"`
	Semester    string `form:"semester" json:"semester" validate:"required"`
	CaptureType string `form:"tipo_captacao" json:"tipo_captacao" validate:"omitempty,oneof=all captacao rematricula"`
	Course      string `form:"curso" json:"curso"`
	Status      string `form:"status" json:"status"`
	Shift       string `form:"turno" json:"turno"`
	Modality    string `form:"modalidade" json:"modalidade"`
}

// ExportRequest extends the comparison query with an output format.
type ExportRequest struct {
	ComparisonRequest
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}
