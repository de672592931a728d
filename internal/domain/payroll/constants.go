package payroll

const (
	StatusUploaded  = "uploaded"
	StatusExtracted = "extracted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"

	SchemaUK = "UK_v1"
	SchemaIE = "IE_v1"

	LineItemEarning   = "EARNING"
	LineItemDeduction = "DEDUCTION"
	LineItemTax       = "TAX"

	MetricGross    = "gross"
	MetricNet      = "net"
	MetricTax      = "tax"
	MetricPension  = "pension"
	MetricNIOrPRSI = "niOrPrsi"
	MetricUSC      = "usc"
	MetricBonuses  = "bonuses"
	MetricOvertime = "overtime"
)

// TrackedMetrics is the fixed order in which breakdown metrics are compared.
var TrackedMetrics = []string{
	MetricGross,
	MetricNet,
	MetricTax,
	MetricPension,
	MetricNIOrPRSI,
	MetricUSC,
	MetricBonuses,
	MetricOvertime,
}

var metricLabels = map[string]string{
	MetricGross:    "Gross pay",
	MetricNet:      "Net pay",
	MetricTax:      "Tax",
	MetricPension:  "Pension",
	MetricNIOrPRSI: "NI/PRSI",
	MetricUSC:      "USC",
	MetricBonuses:  "Bonuses",
	MetricOvertime: "Overtime",
}

func MetricLabel(metric string) string {
	if label, ok := metricLabels[metric]; ok {
		return label
	}
	return metric
}
