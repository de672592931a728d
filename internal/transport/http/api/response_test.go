package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFailWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FailWithDetails(rec, http.StatusBadRequest, "validation_error", "bad", map[string]any{"fields": []string{"year"}}, "req-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var env struct {
		Success   bool `json:"success"`
		RequestID string
		Error     struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error.Code != "validation_error" || env.RequestID != "req-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if _, ok := env.Error.Details["fields"]; !ok {
		t.Fatalf("expected details.fields, got %v", env.Error.Details)
	}
}

func TestAttachmentHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Attachment(rec, "application/pdf", "payslip-report-2026.pdf", []byte("%PDF-1.4"))

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="payslip-report-2026.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" || rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected response: %v %q", rec.Header(), rec.Body.String())
	}
}
