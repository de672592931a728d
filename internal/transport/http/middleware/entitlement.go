package middleware

import (
	"net/http"

	"payreport/internal/domain/access"
	"payreport/internal/requestctx"
	"payreport/internal/transport/http/api"
)

// RequireFeature admits the request only when the caller's plan includes feature.
func RequireFeature(feature string, entitlements access.Entitlements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}

			allowed, err := entitlements.Allows(r.Context(), user.Plan, feature)
			if err != nil {
				requestctx.Logger(r.Context(), nil).Error("entitlement check failed", "err", err, "feature", feature)
				api.Fail(w, http.StatusInternalServerError, "entitlement_error", "entitlement check failed", reqID)
				return
			}
			if !allowed {
				api.Fail(w, http.StatusForbidden, "feature_not_allowed", "plan does not include "+feature, reqID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
