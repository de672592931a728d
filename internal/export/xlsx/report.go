package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
)

// Renderer builds workbooks from an aggregate plus the row-level records it
// was computed from.
type Renderer struct {
	Records payroll.RecordReader
}

func NewRenderer(records payroll.RecordReader) *Renderer {
	return &Renderer{Records: records}
}

func (r *Renderer) Render(ctx context.Context, report reports.AnnualReport) ([]byte, error) {
	sheets, err := r.Sheets(ctx, report)
	if err != nil {
		return nil, err
	}
	return Write(sheets)
}

// Sheets returns Payslips, LineItems, MonthlySummary and Employers, in that
// order.
func (r *Renderer) Sheets(ctx context.Context, report reports.AnnualReport) ([]Sheet, error) {
	records, err := r.Records.ListConfirmedRecords(ctx, report.UserID, report.Year)
	if err != nil {
		return nil, fmt.Errorf("list confirmed records: %w", err)
	}

	employerNames := make(map[string]string, len(report.EmployerTimeline))
	for _, employer := range report.EmployerTimeline {
		employerNames[employer.EmployerID] = employer.EmployerName
	}

	payslips := Sheet{Name: SheetPayslips}
	lineItems := Sheet{Name: SheetLineItems}
	for _, record := range records {
		if !record.Confirmed() || record.PeriodYear != report.Year {
			continue
		}
		breakdown, err := r.Records.GetBreakdown(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("get breakdown for %s: %w", record.ID, err)
		}
		if breakdown == nil {
			breakdown = &payroll.Breakdown{RecordID: record.ID}
		}
		name, err := r.employerName(ctx, record.EmployerID, employerNames)
		if err != nil {
			return nil, err
		}
		payslips.Rows = append(payslips.Rows, Row{
			{Key: "id", Value: record.ID},
			{Key: "month", Value: record.MonthStamp()},
			{Key: "employer", Value: name},
			{Key: "gross", Value: amount(breakdown.Gross)},
			{Key: "net", Value: amount(breakdown.Net)},
			{Key: "tax", Value: amount(breakdown.Tax)},
			{Key: "pension", Value: amount(breakdown.Pension)},
			{Key: "niOrPrsi", Value: amount(breakdown.NIOrPRSI)},
			{Key: "usc", Value: amount(payroll.OrZero(breakdown.USC))},
		})

		items, err := r.Records.ListLineItems(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("list line items for %s: %w", record.ID, err)
		}
		for _, item := range items {
			lineItems.Rows = append(lineItems.Rows, Row{
				{Key: "recordId", Value: record.ID},
				{Key: "month", Value: record.MonthStamp()},
				{Key: "type", Value: item.Type},
				{Key: "label", Value: item.Label},
				{Key: "amount", Value: amount(item.Amount)},
			})
		}
	}

	return []Sheet{payslips, lineItems, monthlySummary(report), employers(report)}, nil
}

func (r *Renderer) employerName(ctx context.Context, employerID string, known map[string]string) (string, error) {
	if name, ok := known[employerID]; ok {
		return name, nil
	}
	employer, err := r.Records.GetEmployer(ctx, employerID)
	if err != nil {
		return "", fmt.Errorf("get employer %s: %w", employerID, err)
	}
	name := reports.UnknownEmployer
	if employer != nil {
		name = employer.Name
	}
	known[employerID] = name
	return name, nil
}

func monthlySummary(report reports.AnnualReport) Sheet {
	sheet := Sheet{Name: SheetMonthlySummary}
	for _, p := range report.MonthlySeries {
		sheet.Rows = append(sheet.Rows, Row{
			{Key: "month", Value: p.Month},
			{Key: "gross", Value: amount(p.Gross)},
			{Key: "net", Value: amount(p.Net)},
			{Key: "tax", Value: amount(p.Tax)},
			{Key: "pension", Value: amount(p.Pension)},
			{Key: "NI/PRSI", Value: amount(p.NIOrPRSI)},
			{Key: "USC", Value: amount(p.USC)},
		})
	}
	return sheet
}

func employers(report reports.AnnualReport) Sheet {
	sheet := Sheet{Name: SheetEmployers}
	for _, employer := range report.EmployerTimeline {
		sheet.Rows = append(sheet.Rows, Row{
			{Key: "id", Value: employer.EmployerID},
			{Key: "name", Value: employer.EmployerName},
			{Key: "months", Value: strings.Join(employer.Months, ", ")},
		})
	}
	return sheet
}

func amount(d decimal.Decimal) float64 {
	return payroll.Round2(d).InexactFloat64()
}
