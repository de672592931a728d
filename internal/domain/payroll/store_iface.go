package payroll

import "context"

// RecordReader is the read side of the payroll record store. GetBreakdown and
// GetEmployer return nil without an error when the row does not exist.
type RecordReader interface {
	ListConfirmedRecords(ctx context.Context, userID string, year int) ([]Record, error)
	GetBreakdown(ctx context.Context, recordID string) (*Breakdown, error)
	ListLineItems(ctx context.Context, recordID string) ([]LineItem, error)
	GetEmployer(ctx context.Context, employerID string) (*Employer, error)
}

// RecordWriter loads records produced by the extraction pipeline.
type RecordWriter interface {
	SaveEmployer(ctx context.Context, employer Employer) error
	SaveRecord(ctx context.Context, record Record, breakdown *Breakdown, items []LineItem) error
}
