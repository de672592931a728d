package reportshandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payreport/internal/domain/access"
	"payreport/internal/domain/reports"
	"payreport/internal/export/pdf"
	"payreport/internal/export/xlsx"
	"payreport/internal/platform/metrics"
	"payreport/internal/requestctx"
	"payreport/internal/transport/http/api"
	"payreport/internal/transport/http/middleware"
	"payreport/internal/transport/http/shared"
)

// WorkbookRenderer turns an annual report into workbook bytes.
type WorkbookRenderer interface {
	Render(ctx context.Context, report reports.AnnualReport) ([]byte, error)
}

type Handler struct {
	Reports      *reports.Service
	Workbooks    WorkbookRenderer
	Entitlements access.Entitlements
	Household    access.HouseholdAccess
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

func NewHandler(service *reports.Service, workbooks WorkbookRenderer, entitlements access.Entitlements, household access.HouseholdAccess, collector *metrics.Collector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Reports:      service,
		Workbooks:    workbooks,
		Entitlements: entitlements,
		Household:    household,
		Metrics:      collector,
		Logger:       logger.With("component", "reports_handler"),
	}
}

type ExportRequest struct {
	Year   int    `json:"year" validate:"required,min=1900,max=9999"`
	Format string `json:"format" validate:"required,oneof=pdf xlsx"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		dashboard := middleware.RequireFeature(access.FeatureAnnualDashboard, h.Entitlements)
		r.With(dashboard).Get("/annual/{year}", h.handleAnnual)
		r.With(dashboard).Get("/annual/{year}/current", h.handleCurrent)
		r.Post("/export", h.handleExport)
	})
}

func (h *Handler) handleAnnual(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	year := v.ParseYear("year", chi.URLParam(r, "year"))
	if v.Reject(w, reqID) {
		return
	}
	subject, ok := shared.Subject(w, r, h.Household)
	if !ok {
		return
	}

	report, err := h.Reports.BuildAnnualReport(r.Context(), subject, year)
	if err != nil {
		h.fail(w, r, err, "build annual report")
		return
	}
	if h.Metrics != nil {
		h.Metrics.ReportBuilt()
	}
	api.Success(w, report, reqID)
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	year := v.ParseYear("year", chi.URLParam(r, "year"))
	if v.Reject(w, reqID) {
		return
	}
	subject, ok := shared.Subject(w, r, h.Household)
	if !ok {
		return
	}

	report, err := h.Reports.Current(r.Context(), subject, year)
	if err != nil {
		h.fail(w, r, err, "load annual report")
		return
	}
	api.Success(w, report, reqID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload ExportRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}

	user, _ := middleware.GetUser(r.Context())
	feature, _ := access.FeatureForFormat(payload.Format)
	allowed, err := h.Entitlements.Allows(r.Context(), user.Plan, feature)
	if err != nil {
		h.fail(w, r, err, "entitlement check")
		return
	}
	if !allowed {
		api.Fail(w, http.StatusForbidden, "feature_not_allowed", "plan does not include "+feature, reqID)
		return
	}
	subject, ok := shared.Subject(w, r, h.Household)
	if !ok {
		return
	}

	report, err := h.Reports.BuildAnnualReport(r.Context(), subject, payload.Year)
	if err != nil {
		h.fail(w, r, err, "build annual report")
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch payload.Format {
	case "pdf":
		body, err = pdf.RenderDocument(report)
		contentType = pdf.ContentType
	case "xlsx":
		body, err = h.Workbooks.Render(r.Context(), report)
		contentType = xlsx.ContentType
	}
	if h.Metrics != nil {
		h.Metrics.Export(payload.Format, err == nil)
	}
	if err != nil {
		requestctx.Logger(r.Context(), h.Logger).Error("export render failed", "format", payload.Format, "year", payload.Year, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "could not render export", reqID)
		return
	}

	api.Attachment(w, contentType, ExportFilename(payload.Year, payload.Format), body)
}

func ExportFilename(year int, format string) string {
	return fmt.Sprintf("payslip-report-%d.%s", year, format)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, reports.ErrReportNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "no annual report has been built for this year", reqID)
	default:
		requestctx.Logger(r.Context(), h.Logger).Error(op+" failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", op+" failed", reqID)
	}
}
