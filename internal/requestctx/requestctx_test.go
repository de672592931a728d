package requestctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
}

func TestLoggerTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	Logger(context.Background(), base).Info("outside")
	Logger(WithRequestID(context.Background(), "req-9"), base).Info("inside")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if strings.Contains(lines[0], "requestId") {
		t.Fatalf("unexpected request id outside a request: %s", lines[0])
	}
	if !strings.Contains(lines[1], "requestId=req-9") {
		t.Fatalf("expected request id on line: %s", lines[1])
	}
}
