package reports

import "github.com/shopspring/decimal"

// AnnualReport is the derived yearly summary for one user. It is recomputed
// from confirmed records and holds no timestamps, so rebuilding from the same
// records yields an identical value.
type AnnualReport struct {
	UserID           string             `json:"userId"`
	Year             int                `json:"year"`
	Totals           Totals             `json:"totals"`
	MonthlySeries    []MonthlyPoint     `json:"monthlySeries"`
	EmployerTimeline []EmployerTimeline `json:"employerTimeline"`
	LineItemTotals   []LineItemTotal    `json:"lineItemTotals"`
	DataQuality      DataQuality        `json:"dataQuality"`
}

type Totals struct {
	Gross    decimal.Decimal `json:"gross"`
	Net      decimal.Decimal `json:"net"`
	Tax      decimal.Decimal `json:"tax"`
	Pension  decimal.Decimal `json:"pension"`
	NIOrPRSI decimal.Decimal `json:"niOrPrsi"`
	USC      decimal.Decimal `json:"usc"`
}

type MonthlyPoint struct {
	Month    string          `json:"month"`
	Gross    decimal.Decimal `json:"gross"`
	Net      decimal.Decimal `json:"net"`
	Tax      decimal.Decimal `json:"tax"`
	Pension  decimal.Decimal `json:"pension"`
	NIOrPRSI decimal.Decimal `json:"niOrPrsi"`
	USC      decimal.Decimal `json:"usc"`
}

type EmployerTimeline struct {
	EmployerID   string   `json:"employerId"`
	EmployerName string   `json:"employerName"`
	Months       []string `json:"months"`
}

type LineItemTotal struct {
	Type           string          `json:"type"`
	Label          string          `json:"label"`
	Total          decimal.Decimal `json:"total"`
	Occurrences    int             `json:"occurrences"`
	FirstSeenMonth int             `json:"firstSeenMonth"`
	Irregular      bool            `json:"irregular"`
	IsNewThisYear  bool            `json:"isNewThisYear"`
}

type DataQuality struct {
	AverageConfidence    float64 `json:"averageConfidence"`
	MissingMonths        []int   `json:"missingMonths"`
	UserEditedFieldCount int     `json:"userEditedFieldCount"`
}

// Empty reports whether the aggregate holds no confirmed data at all.
func (r AnnualReport) Empty() bool {
	return len(r.MonthlySeries) == 0 && len(r.EmployerTimeline) == 0 && len(r.LineItemTotals) == 0
}
