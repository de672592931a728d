// Package requestctx carries per-request values that code below the HTTP
// layer needs, such as the correlation id used to tie log lines together.
package requestctx

import (
	"context"
	"log/slog"
)

type ctxKey int

const requestIDKey ctxKey = iota

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// Logger returns base tagged with the request id, or base itself outside a
// request.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id := RequestID(ctx); id != "" {
		return base.With("requestId", id)
	}
	return base
}
