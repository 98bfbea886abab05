// Package spreadsheet reads enrollment uploads into rows keyed by normalised
// column names.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions the reader cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// preferredSheetHint selects the on-campus sheet in multi-sheet workbooks.
const preferredSheetHint = "PRESENCIAL"

// Row maps a normalised column name to its raw cell value. Empty cells are nil.
type Row map[string]interface{}

// Table is the parsed content of one sheet.
type Table struct {
	Sheet   string
	Headers []string
	Rows    []Row
}

// Supported reports whether the file extension can be parsed.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".csv":
		return true
	default:
		return false
	}
}

// Read parses the payload according to the file extension.
func Read(filename string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ReadXLSX(bytes.NewReader(data))
	case ".csv":
		return ReadCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// NormalizeHeader upper-cases and trims a column name.
func NormalizeHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// ReadXLSX reads the preferred sheet of a workbook. Cells are read raw so
// that date cells arrive as serial numbers instead of locale formatted text.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := pickSheet(f.GetSheetList())
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	table := build(records)
	table.Sheet = sheet
	return table, nil
}

// ReadCSV reads a comma or semicolon separated file.
func ReadCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sniffDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return build(records), nil
}

func pickSheet(names []string) string {
	for _, name := range names {
		if strings.Contains(strings.ToUpper(name), preferredSheetHint) {
			return name
		}
	}
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func sniffDelimiter(raw []byte) rune {
	firstLine := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		return ';'
	}
	return ','
}

func build(records [][]string) *Table {
	table := &Table{}
	if len(records) == 0 {
		return table
	}

	headers := make([]string, len(records[0]))
	seen := make(map[string]bool, len(headers))
	for i, h := range records[0] {
		name := NormalizeHeader(h)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		headers[i] = name
		table.Headers = append(table.Headers, name)
	}

	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		row := make(Row, len(table.Headers))
		for _, name := range table.Headers {
			row[name] = nil
		}
		for i, cell := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			row[headers[i]] = cell
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
