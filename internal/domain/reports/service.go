package reports

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"payreport/internal/domain/payroll"
	"payreport/internal/requestctx"
)

const UnknownEmployer = "Unknown Employer"

var lineItemIrregularAmount = decimal.NewFromInt(100)

type Service struct {
	Records payroll.RecordReader
	Store   Store
	Logger  *slog.Logger

	inflight singleflight.Group
}

func NewService(records payroll.RecordReader, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Records: records, Store: store, Logger: logger.With("component", "reports")}
}

// BuildAnnualReport recomputes the aggregate for (userID, year) from confirmed
// records and stores it as the current one. Concurrent calls for the same key
// share a single computation that outlives any one caller's cancellation; a
// cancelled caller returns its own ctx error while the others still receive
// the result. Callers that need a fresh view must use the returned value; a
// later read of the store may see another call's result.
func (s *Service) BuildAnnualReport(ctx context.Context, userID string, year int) (AnnualReport, error) {
	key := userID + ":" + strconv.Itoa(year)
	detached := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		report, err := s.aggregate(detached, userID, year)
		if err != nil {
			return AnnualReport{}, err
		}
		saved, err := s.Store.SaveAnnualReport(detached, report)
		if err != nil {
			return AnnualReport{}, fmt.Errorf("save annual report: %w", err)
		}
		return saved, nil
	})

	select {
	case <-ctx.Done():
		return AnnualReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return AnnualReport{}, res.Err
		}
		return res.Val.(AnnualReport), nil
	}
}

// Current returns the stored aggregate without recomputing it.
func (s *Service) Current(ctx context.Context, userID string, year int) (AnnualReport, error) {
	return s.Store.GetAnnualReport(ctx, userID, year)
}

func (s *Service) aggregate(ctx context.Context, userID string, year int) (AnnualReport, error) {
	records, err := s.confirmedRecords(ctx, userID, year)
	if err != nil {
		return AnnualReport{}, err
	}
	requestctx.Logger(ctx, s.Logger).DebugContext(ctx, "aggregating annual report", "userId", userID, "year", year, "records", len(records))

	series, editedFields, err := s.monthlySeries(ctx, records)
	if err != nil {
		return AnnualReport{}, err
	}
	totals, err := s.totals(ctx, records, series)
	if err != nil {
		return AnnualReport{}, err
	}
	timeline, err := s.employerTimeline(ctx, records)
	if err != nil {
		return AnnualReport{}, err
	}
	items, err := s.lineItemTotals(ctx, records)
	if err != nil {
		return AnnualReport{}, err
	}

	return AnnualReport{
		UserID:           userID,
		Year:             year,
		Totals:           totals,
		MonthlySeries:    series,
		EmployerTimeline: timeline,
		LineItemTotals:   items,
		DataQuality: DataQuality{
			AverageConfidence:    averageConfidence(records),
			MissingMonths:        missingMonths(records),
			UserEditedFieldCount: editedFields,
		},
	}, nil
}

func (s *Service) confirmedRecords(ctx context.Context, userID string, year int) ([]payroll.Record, error) {
	listed, err := s.Records.ListConfirmedRecords(ctx, userID, year)
	if err != nil {
		return nil, fmt.Errorf("list confirmed records: %w", err)
	}
	records := make([]payroll.Record, 0, len(listed))
	for _, record := range listed {
		if record.Confirmed() && record.PeriodYear == year {
			records = append(records, record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PeriodMonth < records[j].PeriodMonth
	})
	return records, nil
}

// monthlySeries folds every record with a breakdown into one point per month
// stamp. Records whose breakdown is gone are skipped.
func (s *Service) monthlySeries(ctx context.Context, records []payroll.Record) ([]MonthlyPoint, int, error) {
	points := make(map[string]*MonthlyPoint)
	editedFields := 0
	for _, record := range records {
		breakdown, err := s.Records.GetBreakdown(ctx, record.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("get breakdown for %s: %w", record.ID, err)
		}
		if breakdown == nil {
			s.Logger.WarnContext(ctx, "confirmed record has no breakdown", "recordId", record.ID)
			continue
		}
		editedFields += breakdown.EditedCount()

		stamp := record.MonthStamp()
		point, ok := points[stamp]
		if !ok {
			point = &MonthlyPoint{Month: stamp}
			points[stamp] = point
		}
		point.Gross = point.Gross.Add(breakdown.Gross)
		point.Net = point.Net.Add(breakdown.Net)
		point.Tax = point.Tax.Add(breakdown.Tax)
		point.Pension = point.Pension.Add(breakdown.Pension)
		point.NIOrPRSI = point.NIOrPRSI.Add(breakdown.NIOrPRSI)
		point.USC = point.USC.Add(payroll.OrZero(breakdown.USC))
	}

	series := make([]MonthlyPoint, 0, len(points))
	for _, point := range points {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Month < series[j].Month
	})
	return series, editedFields, nil
}

// totals sums the series for gross, net, tax and pension. NI/PRSI and USC are
// summed from the records themselves; a breakdown that vanished in between
// contributes zero.
func (s *Service) totals(ctx context.Context, records []payroll.Record, series []MonthlyPoint) (Totals, error) {
	var totals Totals
	for _, point := range series {
		totals.Gross = totals.Gross.Add(point.Gross)
		totals.Net = totals.Net.Add(point.Net)
		totals.Tax = totals.Tax.Add(point.Tax)
		totals.Pension = totals.Pension.Add(point.Pension)
	}
	for _, record := range records {
		breakdown, err := s.Records.GetBreakdown(ctx, record.ID)
		if err != nil {
			return Totals{}, fmt.Errorf("get breakdown for %s: %w", record.ID, err)
		}
		if breakdown == nil {
			continue
		}
		totals.NIOrPRSI = totals.NIOrPRSI.Add(breakdown.NIOrPRSI)
		totals.USC = totals.USC.Add(payroll.OrZero(breakdown.USC))
	}
	return totals, nil
}

func (s *Service) employerTimeline(ctx context.Context, records []payroll.Record) ([]EmployerTimeline, error) {
	var order []string
	months := make(map[string]map[string]bool)
	for _, record := range records {
		if _, ok := months[record.EmployerID]; !ok {
			order = append(order, record.EmployerID)
			months[record.EmployerID] = make(map[string]bool)
		}
		months[record.EmployerID][record.MonthStamp()] = true
	}

	timeline := make([]EmployerTimeline, 0, len(order))
	for _, employerID := range order {
		name := UnknownEmployer
		employer, err := s.Records.GetEmployer(ctx, employerID)
		if err != nil {
			return nil, fmt.Errorf("get employer %s: %w", employerID, err)
		}
		if employer != nil {
			name = employer.Name
		} else {
			s.Logger.WarnContext(ctx, "employer missing for confirmed records", "employerId", employerID)
		}

		stamps := make([]string, 0, len(months[employerID]))
		for stamp := range months[employerID] {
			stamps = append(stamps, stamp)
		}
		sort.Strings(stamps)
		timeline = append(timeline, EmployerTimeline{EmployerID: employerID, EmployerName: name, Months: stamps})
	}
	return timeline, nil
}

type lineItemAccumulator struct {
	total          LineItemTotal
	firstSeenMonth int
}

// lineItemTotals rolls line items up per (type, label). An item is new this
// year when it occurred exactly once and that occurrence falls in the latest
// confirmed month of the year. This is a heuristic, not a check against
// earlier years.
func (s *Service) lineItemTotals(ctx context.Context, records []payroll.Record) ([]LineItemTotal, error) {
	latestMonth := 0
	for _, record := range records {
		latestMonth = max(latestMonth, record.PeriodMonth)
	}

	var order []payroll.LineItemKey
	byKey := make(map[payroll.LineItemKey]*lineItemAccumulator)
	for _, record := range records {
		items, err := s.Records.ListLineItems(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("list line items for %s: %w", record.ID, err)
		}
		for _, item := range items {
			acc, ok := byKey[item.Key()]
			if !ok {
				acc = &lineItemAccumulator{
					total:          LineItemTotal{Type: item.Type, Label: item.Label},
					firstSeenMonth: record.PeriodMonth,
				}
				byKey[item.Key()] = acc
				order = append(order, item.Key())
			}
			acc.total.Total = acc.total.Total.Add(item.Amount)
			acc.total.Occurrences++
			acc.firstSeenMonth = min(acc.firstSeenMonth, record.PeriodMonth)
			if item.Amount.Abs().GreaterThanOrEqual(lineItemIrregularAmount) {
				acc.total.Irregular = true
			}
		}
	}

	totals := make([]LineItemTotal, 0, len(order))
	for _, key := range order {
		acc := byKey[key]
		acc.total.FirstSeenMonth = acc.firstSeenMonth
		acc.total.IsNewThisYear = acc.total.Occurrences == 1 && acc.firstSeenMonth == latestMonth
		totals = append(totals, acc.total)
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Total.Abs().GreaterThan(totals[j].Total.Abs())
	})
	return totals, nil
}

// averageConfidence is the mean record confidence as a percentage with one
// decimal place.
func averageConfidence(records []payroll.Record) float64 {
	sum := decimal.Zero
	count := 0
	for _, record := range records {
		if record.Confidence == nil || math.IsNaN(*record.Confidence) || math.IsInf(*record.Confidence, 0) {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(*record.Confidence))
		count++
	}
	if count == 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(count))).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

func missingMonths(records []payroll.Record) []int {
	seen := make(map[int]bool, len(records))
	for _, record := range records {
		seen[record.PeriodMonth] = true
	}
	missing := make([]int, 0, 12)
	for month := 1; month <= 12; month++ {
		if !seen[month] {
			missing = append(missing, month)
		}
	}
	return missing
}
