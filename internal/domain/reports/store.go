package reports

import "context"

// Store persists the current aggregate per (user, year). Saving replaces any
// earlier aggregate for the same key.
type Store interface {
	SaveAnnualReport(ctx context.Context, report AnnualReport) (AnnualReport, error)
	GetAnnualReport(ctx context.Context, userID string, year int) (AnnualReport, error)
}
