package pdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"payreport/internal/domain/reports"
)

var majorSwingThreshold = decimal.NewFromInt(200)

// RenderDocument lays the report out on four pages and serializes it. It
// returns either a complete document or an error, never partial output.
func RenderDocument(report reports.AnnualReport) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrRender, r)
		}
	}()

	doc := NewDocument()
	for _, page := range Layout(report) {
		doc.AddPage(page...)
	}
	out, err = doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out, nil
}

// Layout returns the text lines of each page, or nil when the report holds no
// confirmed data.
func Layout(report reports.AnnualReport) [][]string {
	if report.Empty() {
		return nil
	}
	return [][]string{
		summaryPage(report),
		monthlyPage(report),
		lineItemPage(report),
		qualityPage(report),
	}
}

func summaryPage(report reports.AnnualReport) []string {
	t := report.Totals
	lines := []string{
		"Payslip annual report",
		fmt.Sprintf("Year: %d", report.Year),
		"",
		"Totals",
		amountLine("Gross", t.Gross),
		amountLine("Net", t.Net),
		amountLine("Tax", t.Tax),
		amountLine("NI/PRSI", t.NIOrPRSI),
		amountLine("USC", t.USC),
		amountLine("Pension", t.Pension),
		"",
		"Employers",
	}
	for _, employer := range report.EmployerTimeline {
		lines = append(lines, fmt.Sprintf("- %s: %s", employer.EmployerName, strings.Join(employer.Months, ", ")))
	}
	return lines
}

func amountLine(label string, amount decimal.Decimal) string {
	return fmt.Sprintf("  %-8s %12s", label+":", amount.StringFixed(2))
}

func monthlyPage(report reports.AnnualReport) []string {
	lines := []string{"month | gross | net | tax | pension | NI/PRSI | USC"}
	for _, p := range report.MonthlySeries {
		lines = append(lines, strings.Join([]string{
			p.Month,
			p.Gross.StringFixed(2),
			p.Net.StringFixed(2),
			p.Tax.StringFixed(2),
			p.Pension.StringFixed(2),
			p.NIOrPRSI.StringFixed(2),
			p.USC.StringFixed(2),
		}, " | "))
	}
	lines = append(lines, "Major swings: "+majorSwings(report.MonthlySeries))
	return lines
}

// majorSwings lists months whose net pay moved by at least the threshold
// against the preceding point in the series.
func majorSwings(series []reports.MonthlyPoint) string {
	var swings []string
	for i := 1; i < len(series); i++ {
		delta := series[i].Net.Sub(series[i-1].Net)
		if delta.Abs().LessThan(majorSwingThreshold) {
			continue
		}
		sign := ""
		if delta.IsPositive() {
			sign = "+"
		}
		swings = append(swings, fmt.Sprintf("%s (%s%s)", series[i].Month, sign, delta.StringFixed(2)))
	}
	if len(swings) == 0 {
		return "none"
	}
	return strings.Join(swings, ", ")
}

func lineItemPage(report reports.AnnualReport) []string {
	lines := []string{"type | label | total | irregular | new"}
	for _, item := range report.LineItemTotals {
		lines = append(lines, strings.Join([]string{
			item.Type,
			item.Label,
			item.Total.StringFixed(2),
			yesNo(item.Irregular),
			yesNo(item.IsNewThisYear),
		}, " | "))
	}
	return lines
}

func qualityPage(report reports.AnnualReport) []string {
	q := report.DataQuality
	missing := "none"
	if len(q.MissingMonths) > 0 {
		months := make([]string, len(q.MissingMonths))
		for i, m := range q.MissingMonths {
			months[i] = strconv.Itoa(m)
		}
		missing = strings.Join(months, ", ")
	}
	return []string{
		"Data quality",
		"",
		fmt.Sprintf("Average confidence: %s%%", strconv.FormatFloat(q.AverageConfidence, 'f', 1, 64)),
		"Missing months: " + missing,
		fmt.Sprintf("User overrides: %d", q.UserEditedFieldCount),
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
