package shared

import (
	"errors"
	"net/http"

	"payreport/internal/domain/access"
	"payreport/internal/requestctx"
	"payreport/internal/transport/http/api"
	"payreport/internal/transport/http/middleware"
)

// Subject resolves whose payroll data the request reads from ?subject=. On
// failure it writes the response and returns false.
func Subject(w http.ResponseWriter, r *http.Request, household access.HouseholdAccess) (string, bool) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return "", false
	}
	subject, err := access.ResolveSubject(r.Context(), household, user, r.URL.Query().Get("subject"))
	switch {
	case errors.Is(err, access.ErrSubjectForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "no access to this household member", reqID)
		return "", false
	case err != nil:
		requestctx.Logger(r.Context(), nil).Error("household lookup failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "household lookup failed", reqID)
		return "", false
	}
	return subject, true
}
