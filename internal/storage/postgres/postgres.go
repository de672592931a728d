// Package postgres stores payroll records and annual reports in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

func (s *Store) Close() error {
	s.DB.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *Store) SaveEmployer(ctx context.Context, employer payroll.Employer) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employers (id, user_id, name)
    VALUES ($1, $2, $3)
    ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name
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

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO payroll_records (id, user_id, employer_id, period_month, period_year, schema_tag, confidence, edited_fields, status, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    ON CONFLICT (id) DO UPDATE SET
      user_id = EXCLUDED.user_id,
      employer_id = EXCLUDED.employer_id,
      period_month = EXCLUDED.period_month,
      period_year = EXCLUDED.period_year,
      schema_tag = EXCLUDED.schema_tag,
      confidence = EXCLUDED.confidence,
      edited_fields = EXCLUDED.edited_fields,
      status = EXCLUDED.status
  `, record.ID, record.UserID, record.EmployerID, record.PeriodMonth, record.PeriodYear, record.SchemaTag,
		record.Confidence, editedRaw, record.Status, record.CreatedAt); err != nil {
		return fmt.Errorf("upsert record %s: %w", record.ID, err)
	}

	if breakdown == nil {
		if _, err := tx.Exec(ctx, "DELETE FROM payroll_breakdowns WHERE record_id = $1", record.ID); err != nil {
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
		if _, err := tx.Exec(ctx, `
      INSERT INTO payroll_breakdowns (record_id, gross, net, tax, pension, ni_or_prsi, usc, bonuses, overtime, field_confidence, edited_fields)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
      ON CONFLICT (record_id) DO UPDATE SET
        gross = EXCLUDED.gross,
        net = EXCLUDED.net,
        tax = EXCLUDED.tax,
        pension = EXCLUDED.pension,
        ni_or_prsi = EXCLUDED.ni_or_prsi,
        usc = EXCLUDED.usc,
        bonuses = EXCLUDED.bonuses,
        overtime = EXCLUDED.overtime,
        field_confidence = EXCLUDED.field_confidence,
        edited_fields = EXCLUDED.edited_fields
    `, record.ID, breakdown.Gross, breakdown.Net, breakdown.Tax, breakdown.Pension, breakdown.NIOrPRSI,
			breakdown.USC, breakdown.Bonuses, breakdown.Overtime, confidenceRaw, breakdownEdited); err != nil {
			return fmt.Errorf("upsert breakdown %s: %w", record.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM payroll_line_items WHERE record_id = $1", record.ID); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := tx.Exec(ctx, `
      INSERT INTO payroll_line_items (id, record_id, item_type, label, amount, position)
      VALUES ($1, $2, $3, $4, $5, $6)
    `, item.ID, record.ID, item.Type, item.Label, item.Amount, i); err != nil {
			return fmt.Errorf("insert line item %s: %w", item.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) ListConfirmedRecords(ctx context.Context, userID string, year int) ([]payroll.Record, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, employer_id, period_month, period_year, schema_tag, confidence, edited_fields, status, created_at
    FROM payroll_records
    WHERE user_id = $1 AND period_year = $2 AND status = $3
    ORDER BY period_month, id
  `, userID, year, payroll.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payroll.Record
	for rows.Next() {
		var record payroll.Record
		var editedRaw []byte
		if err := rows.Scan(&record.ID, &record.UserID, &record.EmployerID, &record.PeriodMonth, &record.PeriodYear,
			&record.SchemaTag, &record.Confidence, &editedRaw, &record.Status, &record.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeJSON(editedRaw, &record.EditedFields); err != nil {
			return nil, fmt.Errorf("decode edited fields for %s: %w", record.ID, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) GetBreakdown(ctx context.Context, recordID string) (*payroll.Breakdown, error) {
	breakdown := payroll.Breakdown{RecordID: recordID}
	var confidenceRaw, editedRaw []byte
	err := s.DB.QueryRow(ctx, `
    SELECT gross, net, tax, pension, ni_or_prsi, usc, bonuses, overtime, field_confidence, edited_fields
    FROM payroll_breakdowns
    WHERE record_id = $1
  `, recordID).Scan(&breakdown.Gross, &breakdown.Net, &breakdown.Tax, &breakdown.Pension, &breakdown.NIOrPRSI,
		&breakdown.USC, &breakdown.Bonuses, &breakdown.Overtime, &confidenceRaw, &editedRaw)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.DB.Query(ctx, `
    SELECT id, record_id, item_type, label, amount
    FROM payroll_line_items
    WHERE record_id = $1
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
	err := s.DB.QueryRow(ctx, "SELECT id, user_id, name FROM employers WHERE id = $1", employerID).
		Scan(&employer.ID, &employer.UserID, &employer.Name)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO annual_reports (user_id, year, payload, updated_at)
    VALUES ($1, $2, $3, now())
    ON CONFLICT (user_id, year) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
  `, report.UserID, report.Year, payload); err != nil {
		return reports.AnnualReport{}, err
	}
	return report, nil
}

func (s *Store) GetAnnualReport(ctx context.Context, userID string, year int) (reports.AnnualReport, error) {
	var payload []byte
	err := s.DB.QueryRow(ctx, "SELECT payload FROM annual_reports WHERE user_id = $1 AND year = $2", userID, year).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return reports.AnnualReport{}, reports.ErrReportNotFound
	}
	if err != nil {
		return reports.AnnualReport{}, err
	}
	var report reports.AnnualReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return reports.AnnualReport{}, fmt.Errorf("decode annual report: %w", err)
	}
	return report, nil
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
