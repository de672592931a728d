package reportshandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"payreport/internal/domain/access"
	"payreport/internal/domain/auth"
	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
	"payreport/internal/export/xlsx"
	"payreport/internal/platform/metrics"
	"payreport/internal/storage/memory"
	reportshandler "payreport/internal/transport/http/handlers/reports"
	"payreport/internal/transport/http/middleware"
)

const testSecret = "reports-handler-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type brokenWorkbooks struct{}

func (brokenWorkbooks) Render(context.Context, reports.AnnualReport) ([]byte, error) {
	return nil, xlsx.ErrInconsistentSchema
}

type fixture struct {
	router  http.Handler
	metrics *metrics.Collector
}

func newFixture(t *testing.T, workbooks reportshandler.WorkbookRenderer) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.SaveEmployer(ctx, payroll.Employer{ID: "emp-1", UserID: "u1", Name: "Acme Ltd"}); err != nil {
		t.Fatal(err)
	}
	for month, gross := range map[int]string{1: "3000", 2: "3200"} {
		record := payroll.Record{
			ID: "r" + gross, UserID: "u1", EmployerID: "emp-1", PeriodYear: 2026, PeriodMonth: month,
			SchemaTag: payroll.SchemaUK, Status: payroll.StatusConfirmed,
		}
		breakdown := &payroll.Breakdown{Gross: payroll.Amount(gross), Net: payroll.Amount("2000")}
		if err := store.SaveRecord(ctx, record, breakdown, nil); err != nil {
			t.Fatal(err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if workbooks == nil {
		workbooks = xlsx.NewRenderer(store)
	}
	collector := metrics.New()
	entitlements := access.NewPlanEntitlements(map[string][]string{
		"free": {access.FeatureAnnualDashboard},
		"pro":  {access.FeatureAnnualDashboard, access.FeatureExportPDF, access.FeatureExportXLSX},
	})
	h := reportshandler.NewHandler(reports.NewService(store, store, logger), workbooks, entitlements, access.ClaimsHousehold{}, collector, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret, logger))
	h.RegisterRoutes(r)
	return fixture{router: r, metrics: collector}
}

func token(t *testing.T, userID, plan string, household ...string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, Plan: plan, Household: household}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func do(t *testing.T, h http.Handler, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	if env.Success || env.Error == nil || env.Error.Code != code {
		t.Fatalf("expected error code %s, got %+v", code, env)
	}
}

func TestAnnualReport(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(t, f.router, http.MethodGet, "/reports/annual/2026", token(t, "u1", "free"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	var report reports.AnnualReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got := report.Totals.Gross.StringFixed(2); got != "6200.00" {
		t.Fatalf("expected gross 6200.00, got %s", got)
	}
	if len(report.MonthlySeries) != 2 || report.MonthlySeries[0].Month != "2026-01" {
		t.Fatalf("unexpected monthly series: %+v", report.MonthlySeries)
	}
	if built := f.metrics.Snapshot()["reportsBuiltTotal"]; built != uint64(1) {
		t.Fatalf("expected one built report, got %v", built)
	}
}

func TestAnnualReportAccess(t *testing.T) {
	f := newFixture(t, nil)

	expectError(t, do(t, f.router, http.MethodGet, "/reports/annual/2026", "", ""), http.StatusUnauthorized, "unauthorized")
	expectError(t, do(t, f.router, http.MethodGet, "/reports/annual/2026", token(t, "u1", "lapsed"), ""), http.StatusForbidden, "feature_not_allowed")
	expectError(t, do(t, f.router, http.MethodGet, "/reports/annual/20x6", token(t, "u1", "free"), ""), http.StatusBadRequest, "validation_error")
	expectError(t, do(t, f.router, http.MethodGet, "/reports/annual/2026?subject=u1", token(t, "u2", "free"), ""), http.StatusForbidden, "forbidden")

	rec := do(t, f.router, http.MethodGet, "/reports/annual/2026?subject=u1", token(t, "u2", "free", "u1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("household member should read u1, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCurrentReport(t *testing.T) {
	f := newFixture(t, nil)
	tok := token(t, "u1", "free")

	expectError(t, do(t, f.router, http.MethodGet, "/reports/annual/2026/current", tok, ""), http.StatusNotFound, "not_found")

	if rec := do(t, f.router, http.MethodGet, "/reports/annual/2026", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("build failed: %d", rec.Code)
	}
	rec := do(t, f.router, http.MethodGet, "/reports/annual/2026/current", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report reports.AnnualReport
	if err := json.Unmarshal(decode(t, rec).Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.UserID != "u1" || report.Year != 2026 {
		t.Fatalf("unexpected report key %s/%d", report.UserID, report.Year)
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	pro := token(t, "u1", "pro")

	tests := []struct {
		format      string
		contentType string
		magic       []byte
	}{
		{format: "pdf", contentType: "application/pdf", magic: []byte("%PDF-")},
		{format: "xlsx", contentType: xlsx.ContentType, magic: []byte("PK")},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := do(t, f.router, http.MethodPost, "/reports/export", pro, `{"year":2026,"format":"`+tt.format+`"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("expected content type %s, got %s", tt.contentType, got)
			}
			want := `attachment; filename="payslip-report-2026.` + tt.format + `"`
			if got := rec.Header().Get("Content-Disposition"); got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
			if !bytes.HasPrefix(rec.Body.Bytes(), tt.magic) {
				t.Fatalf("unexpected body prefix %q", rec.Body.Bytes()[:min(8, rec.Body.Len())])
			}
		})
	}

	exports := f.metrics.Snapshot()["exportsTotal"].(map[string]uint64)
	if exports["pdf"] != 1 || exports["xlsx"] != 1 {
		t.Fatalf("unexpected export counts: %v", exports)
	}
}

func TestExportRejections(t *testing.T) {
	f := newFixture(t, nil)

	expectError(t, do(t, f.router, http.MethodPost, "/reports/export", "", `{"year":2026,"format":"pdf"}`), http.StatusUnauthorized, "unauthorized")
	expectError(t, do(t, f.router, http.MethodPost, "/reports/export", token(t, "u1", "free"), `{"year":2026,"format":"pdf"}`), http.StatusForbidden, "feature_not_allowed")
	expectError(t, do(t, f.router, http.MethodPost, "/reports/export", token(t, "u1", "pro"), `{"year":2026,"format":"csv"}`), http.StatusBadRequest, "validation_error")
	expectError(t, do(t, f.router, http.MethodPost, "/reports/export", token(t, "u1", "pro"), `{"year":1200,"format":"pdf"}`), http.StatusBadRequest, "validation_error")
	expectError(t, do(t, f.router, http.MethodPost, "/reports/export", token(t, "u1", "pro"), `{"year":2026,"format":"pdf","extra":1}`), http.StatusBadRequest, "invalid_payload")
	expectError(t, do(t, f.router, http.MethodPost, "/reports/export", token(t, "u1", "pro"), `not json`), http.StatusBadRequest, "invalid_payload")
}

func TestExportRenderFailure(t *testing.T) {
	f := newFixture(t, brokenWorkbooks{})

	rec := do(t, f.router, http.MethodPost, "/reports/export", token(t, "u1", "pro"), `{"year":2026,"format":"xlsx"}`)
	expectError(t, rec, http.StatusInternalServerError, "export_failed")
	if rec.Header().Get("Content-Disposition") != "" {
		t.Fatal("failed export must not be sent as an attachment")
	}

	failed := f.metrics.Snapshot()["exportFailuresTotal"].(map[string]uint64)
	if failed["xlsx"] != 1 {
		t.Fatalf("expected one xlsx failure, got %v", failed)
	}
}

func TestExportFilename(t *testing.T) {
	if got := reportshandler.ExportFilename(2025, "xlsx"); got != "payslip-report-2025.xlsx" {
		t.Fatalf("unexpected filename %s", got)
	}
}
