// Package memory provides an in-process storage backend for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
)

type reportKey struct {
	UserID string
	Year   int
}

type Store struct {
	mu         sync.RWMutex
	employers  map[string]payroll.Employer
	records    map[string]payroll.Record
	breakdowns map[string]payroll.Breakdown
	lineItems  map[string][]payroll.LineItem
	reports    map[reportKey]reports.AnnualReport
}

func New() *Store {
	return &Store{
		employers:  make(map[string]payroll.Employer),
		records:    make(map[string]payroll.Record),
		breakdowns: make(map[string]payroll.Breakdown),
		lineItems:  make(map[string][]payroll.LineItem),
		reports:    make(map[reportKey]reports.AnnualReport),
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) SaveEmployer(_ context.Context, employer payroll.Employer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employers[employer.ID] = employer
	return nil
}

// SaveRecord upserts a record. A nil breakdown removes any stored breakdown.
func (s *Store) SaveRecord(_ context.Context, record payroll.Record, breakdown *payroll.Breakdown, items []payroll.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	if breakdown != nil {
		bd := *breakdown
		bd.RecordID = record.ID
		s.breakdowns[record.ID] = bd
	} else {
		delete(s.breakdowns, record.ID)
	}
	stored := make([]payroll.LineItem, len(items))
	for i, item := range items {
		item.RecordID = record.ID
		stored[i] = item
	}
	s.lineItems[record.ID] = stored
	return nil
}

func (s *Store) DeleteBreakdown(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakdowns, recordID)
	return nil
}

func (s *Store) DeleteEmployer(_ context.Context, employerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.employers, employerID)
	return nil
}

// ListConfirmedRecords returns confirmed records ordered by month, then id.
func (s *Store) ListConfirmedRecords(_ context.Context, userID string, year int) ([]payroll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Record
	for _, record := range s.records {
		if record.UserID == userID && record.PeriodYear == year && record.Confirmed() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodMonth == out[j].PeriodMonth {
			return out[i].ID < out[j].ID
		}
		return out[i].PeriodMonth < out[j].PeriodMonth
	})
	return out, nil
}

func (s *Store) GetBreakdown(_ context.Context, recordID string) (*payroll.Breakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	breakdown, ok := s.breakdowns[recordID]
	if !ok {
		return nil, nil
	}
	return &breakdown, nil
}

func (s *Store) ListLineItems(_ context.Context, recordID string) ([]payroll.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.lineItems[recordID]
	out := make([]payroll.LineItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *Store) GetEmployer(_ context.Context, employerID string) (*payroll.Employer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	employer, ok := s.employers[employerID]
	if !ok {
		return nil, nil
	}
	return &employer, nil
}

func (s *Store) SaveAnnualReport(_ context.Context, report reports.AnnualReport) (reports.AnnualReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[reportKey{UserID: report.UserID, Year: report.Year}] = cloneReport(report)
	return report, nil
}

func (s *Store) GetAnnualReport(_ context.Context, userID string, year int) (reports.AnnualReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[reportKey{UserID: userID, Year: year}]
	if !ok {
		return reports.AnnualReport{}, reports.ErrReportNotFound
	}
	return cloneReport(report), nil
}

// cloneReport copies the slices of an aggregate so stored values are never
// shared with callers.
func cloneReport(report reports.AnnualReport) reports.AnnualReport {
	report.MonthlySeries = slices.Clone(report.MonthlySeries)
	report.LineItemTotals = slices.Clone(report.LineItemTotals)
	report.DataQuality.MissingMonths = slices.Clone(report.DataQuality.MissingMonths)
	report.EmployerTimeline = slices.Clone(report.EmployerTimeline)
	for i := range report.EmployerTimeline {
		report.EmployerTimeline[i].Months = slices.Clone(report.EmployerTimeline[i].Months)
	}
	return report
}
