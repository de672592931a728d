package payroll

import "github.com/shopspring/decimal"

const (
	IssueNegative      = "negative_amount"
	IssueMissingUSC    = "missing_usc"
	IssueNetAboveGross = "net_above_gross"
	IssueUnknownSchema = "unknown_schema"
)

// ValidationIssue describes a problem with stored breakdown data. Issues are
// reported alongside results and never stop a computation.
type ValidationIssue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ValidateBreakdown(schemaTag string, b Breakdown) []ValidationIssue {
	var issues []ValidationIssue

	mandatory := []struct {
		field string
		value decimal.Decimal
	}{
		{MetricGross, b.Gross},
		{MetricNet, b.Net},
		{MetricTax, b.Tax},
		{MetricPension, b.Pension},
		{MetricNIOrPRSI, b.NIOrPRSI},
	}
	for _, m := range mandatory {
		if m.value.IsNegative() {
			issues = append(issues, ValidationIssue{Field: m.field, Code: IssueNegative, Message: MetricLabel(m.field) + " must not be negative"})
		}
	}

	switch schemaTag {
	case SchemaIE:
		if !b.USC.Valid {
			issues = append(issues, ValidationIssue{Field: MetricUSC, Code: IssueMissingUSC, Message: "USC is required for Irish payslips"})
		} else if b.USC.Decimal.IsNegative() {
			issues = append(issues, ValidationIssue{Field: MetricUSC, Code: IssueNegative, Message: "USC must not be negative"})
		}
	case SchemaUK:
	default:
		issues = append(issues, ValidationIssue{Field: "schemaTag", Code: IssueUnknownSchema, Message: "unrecognised payslip schema " + schemaTag})
	}

	if b.Net.GreaterThan(b.Gross) {
		issues = append(issues, ValidationIssue{Field: MetricNet, Code: IssueNetAboveGross, Message: "net pay exceeds gross pay"})
	}
	return issues
}
