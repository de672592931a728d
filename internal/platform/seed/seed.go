// Package seed loads payroll fixtures from a JSON file into a record store, so
// a fresh deployment or a demo environment has data to report on.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"payreport/internal/domain/payroll"
)

type Fixtures struct {
	Employers []payroll.Employer `json:"employers"`
	Records   []FixtureRecord    `json:"records"`
}

type FixtureRecord struct {
	payroll.Record
	Breakdown *payroll.Breakdown `json:"breakdown,omitempty"`
	LineItems []payroll.LineItem `json:"lineItems,omitempty"`
}

// LoadFile reads and applies a fixtures file. An empty path is a no-op.
func LoadFile(ctx context.Context, path string, store payroll.RecordWriter, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()

	fixtures, err := Decode(file)
	if err != nil {
		return fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	if err := Apply(ctx, store, fixtures); err != nil {
		return err
	}
	logger.Info("fixtures loaded", "path", path, "employers", len(fixtures.Employers), "records", len(fixtures.Records))
	return nil
}

func Decode(r io.Reader) (Fixtures, error) {
	var fixtures Fixtures
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fixtures); err != nil {
		return Fixtures{}, err
	}
	return fixtures, nil
}

// Apply writes employers first, then records with their breakdowns and line
// items. Missing ids are generated; a missing status means confirmed.
func Apply(ctx context.Context, store payroll.RecordWriter, fixtures Fixtures) error {
	for _, employer := range fixtures.Employers {
		if employer.ID == "" {
			employer.ID = uuid.NewString()
		}
		if err := store.SaveEmployer(ctx, employer); err != nil {
			return fmt.Errorf("seed employer %s: %w", employer.ID, err)
		}
	}

	for i, fixture := range fixtures.Records {
		record := fixture.Record
		if record.PeriodMonth < 1 || record.PeriodMonth > 12 {
			return fmt.Errorf("fixture record %d: %w", i, payroll.ErrInvalidPeriod)
		}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.Status == "" {
			record.Status = payroll.StatusConfirmed
		}

		var breakdown *payroll.Breakdown
		if fixture.Breakdown != nil {
			copied := *fixture.Breakdown
			copied.RecordID = record.ID
			breakdown = &copied
		}

		items := make([]payroll.LineItem, 0, len(fixture.LineItems))
		for _, item := range fixture.LineItems {
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.RecordID = record.ID
			items = append(items, item)
		}

		if err := store.SaveRecord(ctx, record, breakdown, items); err != nil {
			return fmt.Errorf("seed record %s: %w", record.ID, err)
		}
	}
	return nil
}
