package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Employer struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Record is one pay period as produced by the upload and extraction pipeline.
// Only records in StatusConfirmed take part in comparisons and aggregation.
type Record struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	EmployerID   string          `json:"employerId"`
	PeriodMonth  int             `json:"periodMonth"`
	PeriodYear   int             `json:"periodYear"`
	SchemaTag    string          `json:"schemaTag"`
	Confidence   *float64        `json:"confidence,omitempty"`
	EditedFields map[string]bool `json:"editedFields,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (r Record) MonthStamp() string {
	return MonthStamp(r.PeriodYear, r.PeriodMonth)
}

func (r Record) Confirmed() bool {
	return r.Status == StatusConfirmed
}

// Breakdown is the earnings and deductions summary of one record. USC, bonuses
// and overtime are optional and depend on the record's schema.
type Breakdown struct {
	RecordID        string              `json:"recordId"`
	Gross           decimal.Decimal     `json:"gross"`
	Net             decimal.Decimal     `json:"net"`
	Tax             decimal.Decimal     `json:"tax"`
	Pension         decimal.Decimal     `json:"pension"`
	NIOrPRSI        decimal.Decimal     `json:"niOrPrsi"`
	USC             decimal.NullDecimal `json:"usc"`
	Bonuses         decimal.NullDecimal `json:"bonuses"`
	Overtime        decimal.NullDecimal `json:"overtime"`
	FieldConfidence map[string]float64  `json:"fieldConfidence,omitempty"`
	EditedFields    map[string]bool     `json:"editedFields,omitempty"`
}

// Metric returns the named metric, with absent optional values read as zero.
func (b Breakdown) Metric(name string) decimal.Decimal {
	switch name {
	case MetricGross:
		return b.Gross
	case MetricNet:
		return b.Net
	case MetricTax:
		return b.Tax
	case MetricPension:
		return b.Pension
	case MetricNIOrPRSI:
		return b.NIOrPRSI
	case MetricUSC:
		return OrZero(b.USC)
	case MetricBonuses:
		return OrZero(b.Bonuses)
	case MetricOvertime:
		return OrZero(b.Overtime)
	}
	return decimal.Zero
}

// EditedCount is the number of fields a person overrode after extraction.
func (b Breakdown) EditedCount() int {
	count := 0
	for _, edited := range b.EditedFields {
		if edited {
			count++
		}
	}
	return count
}

type LineItem struct {
	ID       string          `json:"id"`
	RecordID string          `json:"recordId"`
	Type     string          `json:"type"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
}

// Key identifies a line item across periods. Labels are free text, so a
// renamed item reads as one removal plus one addition.
func (li LineItem) Key() LineItemKey {
	return LineItemKey{Type: li.Type, Label: li.Label}
}

type LineItemKey struct {
	Type  string
	Label string
}

// MonthStamp formats a calendar month as YYYY-MM.
func MonthStamp(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
