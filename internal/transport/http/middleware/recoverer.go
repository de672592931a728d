package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"payreport/internal/transport/http/api"
)

func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				reqID := GetRequestID(r.Context())
				logger.Error("panic recovered", "panic", rec, "requestId", reqID, "stack", string(debug.Stack()))
				api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
