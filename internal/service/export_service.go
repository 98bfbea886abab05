package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/dto"
	"github.com/noah-isme/enrollment-insight-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
	"github.com/noah-isme/enrollment-insight-api/pkg/export"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

var contentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type comparisonProvider interface {
	Compare(ctx context.Context, req dto.ComparisonRequest) (*ComparisonResult, bool, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportFile is a rendered report ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders comparison reports as downloadable files.
type ExportService struct {
	comparisons comparisonProvider
	csv         csvRenderer
	pdf         pdfRenderer
	xlsx        xlsxRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers get defaults.
func NewExportService(comparisons comparisonProvider, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithDelimiter(';'), export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{comparisons: comparisons, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// ExportComparison runs the comparison and renders it in the requested
// format (csv by default).
func (s *ExportService) ExportComparison(ctx context.Context, req dto.ExportRequest) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatCSV
	}
	contentType, ok := contentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, xlsx")
	}

	result, _, err := s.comparisons.Compare(ctx, req.ComparisonRequest)
	if err != nil {
		return nil, err
	}
	report := result.Report
	dataset := ComparisonDataset(report)
	title := fmt.Sprintf("Comparativo %s - %s - %s", report.UnitID, report.Semester, report.RefDate.BR())

	var payload []byte
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case FormatXLSX:
		payload, err = s.xlsx.Render(dataset, report.Semester)
	}
	if err != nil {
		s.logger.Error("comparison export failed",
			zap.String("unit_id", report.UnitID),
			zap.String("format", format),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("comparison_%s_%s_%s.%s", sanitizeFilename(report.UnitID), sanitizeFilename(report.Semester), report.RefDate.ISO(), format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

// ComparisonDataset pivots the report to one line per day with a column per
// cohort term.
func ComparisonDataset(report *models.ComparisonReport) export.Dataset {
	headers := append([]string{"data", "dia"}, report.TargetTerms...)
	var rows []map[string]string
	index := map[string]map[string]string{}
	for _, r := range report.Rows {
		row, ok := index[r.SortDate]
		if !ok {
			row = map[string]string{"data": r.RefDayMonth, "dia": r.WeekdayName}
			index[r.SortDate] = row
			rows = append(rows, row)
		}
		row[r.SemesterID] = strconv.Itoa(r.StudentCount)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
