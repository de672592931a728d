package payroll

import (
	"context"
	"fmt"
	"sort"
)

type Service struct {
	Records RecordReader
}

func NewService(records RecordReader) *Service {
	return &Service{Records: records}
}

type ComparisonQuery struct {
	UserID     string
	Year       int
	Month      int
	EmployerID string
}

// Comparison is a month-over-month view of one confirmed period against the
// latest confirmed period before it.
type Comparison struct {
	Current   Record            `json:"current"`
	Previous  Record            `json:"previous"`
	Metrics   []MetricDiff      `json:"metrics"`
	LineItems []LineItemChange  `json:"lineItems"`
	Issues    []ValidationIssue `json:"issues"`
}

type period struct {
	record    Record
	breakdown Breakdown
}

func (s *Service) Compare(ctx context.Context, q ComparisonQuery) (Comparison, error) {
	if q.Month < 1 || q.Month > 12 {
		return Comparison{}, ErrInvalidPeriod
	}

	thisYear, err := s.confirmed(ctx, q.UserID, q.Year, q.EmployerID)
	if err != nil {
		return Comparison{}, err
	}

	var current *period
	for i := range thisYear {
		if thisYear[i].PeriodMonth != q.Month {
			continue
		}
		p, err := s.withBreakdown(ctx, thisYear[i])
		if err != nil {
			return Comparison{}, err
		}
		if p != nil {
			current = p
			break
		}
	}
	if current == nil {
		return Comparison{}, ErrRecordNotFound
	}

	previous, err := s.latestBefore(ctx, thisYear, q.Month)
	if err != nil {
		return Comparison{}, err
	}
	if previous == nil {
		lastYear, err := s.confirmed(ctx, q.UserID, q.Year-1, q.EmployerID)
		if err != nil {
			return Comparison{}, err
		}
		previous, err = s.latestBefore(ctx, lastYear, 13)
		if err != nil {
			return Comparison{}, err
		}
	}
	if previous == nil {
		return Comparison{}, ErrNoPreviousPeriod
	}

	currentItems, err := s.Records.ListLineItems(ctx, current.record.ID)
	if err != nil {
		return Comparison{}, fmt.Errorf("list line items for %s: %w", current.record.ID, err)
	}
	previousItems, err := s.Records.ListLineItems(ctx, previous.record.ID)
	if err != nil {
		return Comparison{}, fmt.Errorf("list line items for %s: %w", previous.record.ID, err)
	}

	return Comparison{
		Current:   current.record,
		Previous:  previous.record,
		Metrics:   ComputeMetricDiffs(current.breakdown, previous.breakdown),
		LineItems: DetectLineItemChanges(currentItems, previousItems),
		Issues:    ValidateBreakdown(current.record.SchemaTag, current.breakdown),
	}, nil
}

func (s *Service) confirmed(ctx context.Context, userID string, year int, employerID string) ([]Record, error) {
	records, err := s.Records.ListConfirmedRecords(ctx, userID, year)
	if err != nil {
		return nil, fmt.Errorf("list confirmed records for %d: %w", year, err)
	}
	out := make([]Record, 0, len(records))
	for _, record := range records {
		if !record.Confirmed() || record.PeriodYear != year {
			continue
		}
		if employerID != "" && record.EmployerID != employerID {
			continue
		}
		out = append(out, record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodMonth < out[j].PeriodMonth
	})
	return out, nil
}

// latestBefore walks records (sorted by month) backwards from the month before
// the given one and returns the first period that still has a breakdown.
func (s *Service) latestBefore(ctx context.Context, records []Record, month int) (*period, error) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].PeriodMonth >= month {
			continue
		}
		p, err := s.withBreakdown(ctx, records[i])
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

func (s *Service) withBreakdown(ctx context.Context, record Record) (*period, error) {
	breakdown, err := s.Records.GetBreakdown(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("get breakdown for %s: %w", record.ID, err)
	}
	if breakdown == nil {
		return nil, nil
	}
	return &period{record: record, breakdown: *breakdown}, nil
}
