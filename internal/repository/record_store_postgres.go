package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
)

// DefaultRecordTable is used when no table name is configured.
const DefaultRecordTable = "enrollment_records"

var recordInsertColumns = []string{
	"unit_id", "student_id", "term_id", "student_name", "course", "status", "modality",
	"company_code", "branch_code", "branch", "qualification", "tax_id", "email",
	"postal_code", "street", "street_number", "district", "phone1", "phone2",
	"intake_type", "admission_type", "shift", "period", "class_code",
	"campus_code", "campus", "city",
}

// PostgresRecordStore mirrors enrollment records into a Postgres table.
// Enrollment dates arrive as DD/MM/YYYY text and are stored as DATE.
type PostgresRecordStore struct {
	db          *sqlx.DB
	table       string
	insertQuery string
}

// NewPostgresRecordStore constructs a PostgresRecordStore.
func NewPostgresRecordStore(db *sqlx.DB, table string) *PostgresRecordStore {
	if strings.TrimSpace(table) == "" {
		table = DefaultRecordTable
	}
	quoted := pq.QuoteIdentifier(table)

	values := make([]string, 0, len(recordInsertColumns)+1)
	for _, col := range recordInsertColumns {
		values = append(values, ":"+col)
	}
	values = append(values, "to_date(NULLIF(:enrollment_date, ''), 'DD/MM/YYYY')")
	insert := fmt.Sprintf("INSERT INTO %s (%s, enrollment_date) VALUES (%s)",
		quoted, strings.Join(recordInsertColumns, ", "), strings.Join(values, ", "))

	return &PostgresRecordStore{db: db, table: quoted, insertQuery: insert}
}

// DeleteByUnit removes every record of the unit and reports how many rows
// went away, or -1 when the driver cannot tell.
func (s *PostgresRecordStore) DeleteByUnit(ctx context.Context, unitID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE unit_id = $1", s.table)
	res, err := s.db.ExecContext(ctx, query, unitID)
	if err != nil {
		return 0, fmt.Errorf("delete records for unit %s: %w", unitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return affected, nil
}

// InsertBatch writes the records with a single multi-row insert.
func (s *PostgresRecordStore) InsertBatch(ctx context.Context, records []models.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := s.db.NamedExecContext(ctx, s.insertQuery, records); err != nil {
		return fmt.Errorf("insert %d records: %w", len(records), err)
	}
	return nil
}

// FetchPage returns up to limit records matching the filter, starting at offset.
func (s *PostgresRecordStore) FetchPage(ctx context.Context, filter models.RecordFilter, offset, limit int) ([]models.StoredRecord, error) {
	conditions := []string{"unit_id = $1"}
	args := []interface{}{filter.UnitID}

	if len(filter.TermIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("term_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.TermIDs))
	}
	for _, eq := range []struct {
		column string
		value  string
	}{
		{"intake_type", filter.IntakeType},
		{"course", filter.Course},
		{"status", filter.Status},
		{"shift", filter.Shift},
		{"modality", filter.Modality},
	} {
		if eq.value == "" {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", eq.column, len(args)+1))
		args = append(args, eq.value)
	}

	query := fmt.Sprintf(`SELECT student_id, term_id, to_char(enrollment_date, 'YYYY-MM-DD') AS enrollment_date,
        intake_type, course, status, shift, modality, branch, period
        FROM %s WHERE %s ORDER BY id LIMIT %d OFFSET %d`,
		s.table, strings.Join(conditions, " AND "), limit, offset)

	var records []models.StoredRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("fetch records page at offset %d: %w", offset, err)
	}
	return records, nil
}

// Ping checks connectivity with the database.
func (s *PostgresRecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
