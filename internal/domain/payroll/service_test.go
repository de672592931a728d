package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payreport/internal/domain/payroll"
	"payreport/internal/storage/memory"
)

type seedRecord struct {
	id       string
	employer string
	year     int
	month    int
	status   string
	gross    string
	net      string
	items    []payroll.LineItem
	noBreak  bool
}

func seedStore(t *testing.T, records ...seedRecord) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, r := range records {
		status := r.status
		if status == "" {
			status = payroll.StatusConfirmed
		}
		record := payroll.Record{
			ID:          r.id,
			UserID:      "u1",
			EmployerID:  r.employer,
			PeriodYear:  r.year,
			PeriodMonth: r.month,
			SchemaTag:   payroll.SchemaUK,
			Status:      status,
			CreatedAt:   time.Date(r.year, time.Month(r.month), 28, 0, 0, 0, 0, time.UTC),
		}
		var breakdown *payroll.Breakdown
		if !r.noBreak {
			breakdown = &payroll.Breakdown{
				RecordID: r.id,
				Gross:    payroll.Amount(r.gross),
				Net:      payroll.Amount(r.net),
				Tax:      payroll.Amount("400"),
				Pension:  payroll.Amount("100"),
				NIOrPRSI: payroll.Amount("150"),
			}
		}
		require.NoError(t, store.SaveRecord(ctx, record, breakdown, r.items))
	}
	return store
}

func TestCompareWithinYear(t *testing.T) {
	store := seedStore(t,
		seedRecord{id: "jan", employer: "e1", year: 2026, month: 1, gross: "3000", net: "2300",
			items: []payroll.LineItem{{ID: "li-1", Type: payroll.LineItemTax, Label: "PAYE", Amount: payroll.Amount("420")}}},
		seedRecord{id: "feb", employer: "e1", year: 2026, month: 2, gross: "3200", net: "2450",
			items: []payroll.LineItem{{ID: "li-2", Type: payroll.LineItemTax, Label: "PAYE", Amount: payroll.Amount("500")}}},
	)
	svc := payroll.NewService(store)

	cmp, err := svc.Compare(context.Background(), payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 2})
	require.NoError(t, err)
	assert.Equal(t, "feb", cmp.Current.ID)
	assert.Equal(t, "jan", cmp.Previous.ID)
	require.Len(t, cmp.Metrics, len(payroll.TrackedMetrics))
	assert.Equal(t, "200.00", cmp.Metrics[0].Delta.StringFixed(2))
	require.Len(t, cmp.LineItems, 1)
	assert.Equal(t, "80.00", cmp.LineItems[0].Delta.StringFixed(2))
	assert.Empty(t, cmp.Issues)
}

func TestCompareCrossesYearAndSkipsGaps(t *testing.T) {
	store := seedStore(t,
		seedRecord{id: "nov", employer: "e1", year: 2025, month: 11, gross: "2900", net: "2200"},
		seedRecord{id: "dec", employer: "e1", year: 2025, month: 12, noBreak: true},
		seedRecord{id: "jan", employer: "e1", year: 2026, month: 1, gross: "3000", net: "2300"},
	)
	svc := payroll.NewService(store)

	cmp, err := svc.Compare(context.Background(), payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 1})
	require.NoError(t, err)
	assert.Equal(t, "nov", cmp.Previous.ID, "december has no breakdown and is skipped")
}

func TestCompareErrors(t *testing.T) {
	store := seedStore(t,
		seedRecord{id: "jan", employer: "e1", year: 2026, month: 1, gross: "3000", net: "2300"},
		seedRecord{id: "feb-draft", employer: "e1", year: 2026, month: 2, status: payroll.StatusExtracted, gross: "1", net: "1"},
		seedRecord{id: "mar", employer: "e2", year: 2026, month: 3, gross: "3000", net: "2300"},
	)
	svc := payroll.NewService(store)
	ctx := context.Background()

	tests := []struct {
		name string
		q    payroll.ComparisonQuery
		want error
	}{
		{name: "invalid month", q: payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 0}, want: payroll.ErrInvalidPeriod},
		{name: "unconfirmed month", q: payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 2}, want: payroll.ErrRecordNotFound},
		{name: "first ever period", q: payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 1}, want: payroll.ErrNoPreviousPeriod},
		{name: "employer filter hides earlier period", q: payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 3, EmployerID: "e2"}, want: payroll.ErrNoPreviousPeriod},
		{name: "other user", q: payroll.ComparisonQuery{UserID: "u2", Year: 2026, Month: 1}, want: payroll.ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compare(ctx, tt.q)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	cmp, err := svc.Compare(ctx, payroll.ComparisonQuery{UserID: "u1", Year: 2026, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, "jan", cmp.Previous.ID, "without a filter the other employer's january is used")
}
