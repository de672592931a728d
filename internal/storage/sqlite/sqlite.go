/*
Package sqlite stores payroll records and annual reports in a local SQLite
file, for single-user deployments that do not run PostgreSQL.

Amounts are kept as TEXT so decimals round-trip exactly. The schema is created
on Open; there is no separate migration step.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
)

const schema = `
CREATE TABLE IF NOT EXISTS employers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS payroll_records (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  employer_id TEXT NOT NULL,
  period_month INTEGER NOT NULL,
  period_year INTEGER NOT NULL,
  schema_tag TEXT NOT NULL,
  confidence REAL,
  edited_fields TEXT NOT NULL DEFAULT '{}',
  status TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payroll_records_user_year ON payroll_records (user_id, period_year, status);
CREATE TABLE IF NOT EXISTS payroll_breakdowns (
  record_id TEXT PRIMARY KEY REFERENCES payroll_records(id) ON DELETE CASCADE,
  gross TEXT NOT NULL,
  net TEXT NOT NULL,
  tax TEXT NOT NULL,
  pension TEXT NOT NULL,
  ni_or_prsi TEXT NOT NULL,
  usc TEXT,
  bonuses TEXT,
  overtime TEXT,
  field_confidence TEXT NOT NULL DEFAULT '{}',
  edited_fields TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS payroll_line_items (
  id TEXT PRIMARY KEY,
  record_id TEXT NOT NULL REFERENCES payroll_records(id) ON DELETE CASCADE,
  item_type TEXT NOT NULL,
  label TEXT NOT NULL,
  amount TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_payroll_line_items_record ON payroll_line_items (record_id, position);
CREATE TABLE IF NOT EXISTS annual_reports (
  user_id TEXT NOT NULL,
  year INTEGER NOT NULL,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (user_id, year)
);
`

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) SaveEmployer(ctx context.Context, employer payroll.Employer) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO employers (id, user_id, name) VALUES (?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, name = excluded.name
  `, employer.ID, employer.UserID, employer.Name)
	return err
}

func (s *Store) SaveRecord(ctx context.Context, record payroll.Record, breakdown *payroll.Breakdown, items []payroll.LineItem) error {
	editedRaw, err := json.Marshal(record.EditedFields)
	if err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
    INSERT INTO payroll_records (id, user_id, employer_id, period_month, period_year, schema_tag, confidence, edited_fields, status, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
      user_id = excluded.user_id,
      employer_id = excluded.employer_id,
      period_month = excluded.period_month,
      period_year = excluded.period_year,
      schema_tag = excluded.schema_tag,
      confidence = excluded.confidence,
      edited_fields = excluded.edited_fields,
      status = excluded.status
  `, record.ID, record.UserID, record.EmployerID, record.PeriodMonth, record.PeriodYear, record.SchemaTag,
		record.Confidence, string(editedRaw), record.Status, record.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert record %s: %w", record.ID, err)
	}

	if breakdown == nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM payroll_breakdowns WHERE record_id = ?", record.ID); err != nil {
			return err
		}
	} else {
		confidenceRaw, err := json.Marshal(breakdown.FieldConfidence)
		if err != nil {
			return err
		}
		breakdownEdited, err := json.Marshal(breakdown.EditedFields)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
      INSERT INTO payroll_breakdowns (record_id, gross, net, tax, pension, ni_or_prsi, usc, bonuses, overtime, field_confidence, edited_fields)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
      ON CONFLICT (record_id) DO UPDATE SET
        gross = excluded.gross,
        net = excluded.net,
        tax = excluded.tax,
        pension = excluded.pension,
        ni_or_prsi = excluded.ni_or_prsi,
        usc = excluded.usc,
        bonuses = excluded.bonuses,
        overtime = excluded.overtime,
        field_confidence = excluded.field_confidence,
        edited_fields = excluded.edited_fields
    `, record.ID, breakdown.Gross, breakdown.Net, breakdown.Tax, breakdown.Pension, breakdown.NIOrPRSI,
			breakdown.USC, breakdown.Bonuses, breakdown.Overtime, string(confidenceRaw), string(breakdownEdited)); err != nil {
			return fmt.Errorf("upsert breakdown %s: %w", record.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM payroll_line_items WHERE record_id = ?", record.ID); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, `
      INSERT INTO payroll_line_items (id, record_id, item_type, label, amount, position)
      VALUES (?, ?, ?, ?, ?, ?)
    `, item.ID, record.ID, item.Type, item.Label, item.Amount, i); err != nil {
			return fmt.Errorf("insert line item %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListConfirmedRecords(ctx context.Context, userID string, year int) ([]payroll.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, user_id, employer_id, period_month, period_year, schema_tag, confidence, edited_fields, status, created_at
    FROM payroll_records
    WHERE user_id = ? AND period_year = ? AND status = ?
    ORDER BY period_month, id
  `, userID, year, payroll.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payroll.Record
	for rows.Next() {
		var (
			record     payroll.Record
			confidence sql.NullFloat64
			editedRaw  string
			createdAt  string
		)
		if err := rows.Scan(&record.ID, &record.UserID, &record.EmployerID, &record.PeriodMonth, &record.PeriodYear,
			&record.SchemaTag, &confidence, &editedRaw, &record.Status, &createdAt); err != nil {
			return nil, err
		}
		if confidence.Valid {
			value := confidence.Float64
			record.Confidence = &value
		}
		if err := decodeJSON(editedRaw, &record.EditedFields); err != nil {
			return nil, fmt.Errorf("decode edited fields for %s: %w", record.ID, err)
		}
		if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", record.ID, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) GetBreakdown(ctx context.Context, recordID string) (*payroll.Breakdown, error) {
	breakdown := payroll.Breakdown{RecordID: recordID}
	var confidenceRaw, editedRaw string
	err := s.db.QueryRowContext(ctx, `
    SELECT gross, net, tax, pension, ni_or_prsi, usc, bonuses, overtime, field_confidence, edited_fields
    FROM payroll_breakdowns
    WHERE record_id = ?
  `, recordID).Scan(&breakdown.Gross, &breakdown.Net, &breakdown.Tax, &breakdown.Pension, &breakdown.NIOrPRSI,
		&breakdown.USC, &breakdown.Bonuses, &breakdown.Overtime, &confidenceRaw, &editedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(confidenceRaw, &breakdown.FieldConfidence); err != nil {
		return nil, fmt.Errorf("decode field confidence for %s: %w", recordID, err)
	}
	if err := decodeJSON(editedRaw, &breakdown.EditedFields); err != nil {
		return nil, fmt.Errorf("decode edited fields for %s: %w", recordID, err)
	}
	return &breakdown, nil
}

func (s *Store) ListLineItems(ctx context.Context, recordID string) ([]payroll.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, record_id, item_type, label, amount
    FROM payroll_line_items
    WHERE record_id = ?
    ORDER BY position
  `, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []payroll.LineItem
	for rows.Next() {
		var item payroll.LineItem
		if err := rows.Scan(&item.ID, &item.RecordID, &item.Type, &item.Label, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetEmployer(ctx context.Context, employerID string) (*payroll.Employer, error) {
	var employer payroll.Employer
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, name FROM employers WHERE id = ?", employerID).
		Scan(&employer.ID, &employer.UserID, &employer.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &employer, nil
}

func (s *Store) SaveAnnualReport(ctx context.Context, report reports.AnnualReport) (reports.AnnualReport, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return reports.AnnualReport{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
    INSERT INTO annual_reports (user_id, year, payload, updated_at) VALUES (?, ?, ?, ?)
    ON CONFLICT (user_id, year) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
  `, report.UserID, report.Year, string(payload), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return reports.AnnualReport{}, err
	}
	return report, nil
}

func (s *Store) GetAnnualReport(ctx context.Context, userID string, year int) (reports.AnnualReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM annual_reports WHERE user_id = ? AND year = ?", userID, year).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return reports.AnnualReport{}, reports.ErrReportNotFound
	}
	if err != nil {
		return reports.AnnualReport{}, err
	}
	var report reports.AnnualReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return reports.AnnualReport{}, fmt.Errorf("decode annual report: %w", err)
	}
	return report, nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
