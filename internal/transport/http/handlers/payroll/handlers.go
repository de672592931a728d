package payrollhandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payreport/internal/domain/access"
	"payreport/internal/domain/payroll"
	"payreport/internal/requestctx"
	"payreport/internal/transport/http/api"
	"payreport/internal/transport/http/middleware"
	"payreport/internal/transport/http/shared"
)

type Handler struct {
	Payroll   *payroll.Service
	Household access.HouseholdAccess
	Logger    *slog.Logger
}

func NewHandler(service *payroll.Service, household access.HouseholdAccess, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Payroll: service, Household: household, Logger: logger.With("component", "payroll_handler")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/comparison", h.handleComparison)
	})
}

func (h *Handler) handleComparison(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	v := shared.NewValidator()
	year := v.ParseYear("year", query.Get("year"))
	month := v.ParseMonth("month", query.Get("month"))
	if v.Reject(w, reqID) {
		return
	}
	subject, ok := shared.Subject(w, r, h.Household)
	if !ok {
		return
	}

	comparison, err := h.Payroll.Compare(r.Context(), payroll.ComparisonQuery{
		UserID:     subject,
		Year:       year,
		Month:      month,
		EmployerID: strings.TrimSpace(query.Get("employerId")),
	})
	switch {
	case err == nil:
		api.Success(w, comparison, reqID)
	case errors.Is(err, payroll.ErrRecordNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "no confirmed payslip for this month", reqID)
	case errors.Is(err, payroll.ErrNoPreviousPeriod):
		api.Fail(w, http.StatusNotFound, "no_previous_period", "no earlier confirmed payslip to compare with", reqID)
	case errors.Is(err, payroll.ErrInvalidPeriod):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	default:
		requestctx.Logger(r.Context(), h.Logger).Error("comparison failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "comparison failed", reqID)
	}
}
