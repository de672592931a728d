package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"payreport/internal/domain/access"
	"payreport/internal/domain/auth"
)

type failingEntitlements struct{}

func (failingEntitlements) Allows(context.Context, string, string) (bool, error) {
	return false, errors.New("table unavailable")
}

func TestRequireFeature(t *testing.T) {
	ent := access.NewPlanEntitlements(map[string][]string{"free": {access.FeatureAnnualDashboard}})
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name         string
		user         *auth.UserContext
		entitlements access.Entitlements
		feature      string
		want         int
	}{
		{name: "anonymous", entitlements: ent, feature: access.FeatureAnnualDashboard, want: http.StatusUnauthorized},
		{name: "allowed", user: &auth.UserContext{UserID: "u1", Plan: "free"}, entitlements: ent, feature: access.FeatureAnnualDashboard, want: http.StatusNoContent},
		{name: "not in plan", user: &auth.UserContext{UserID: "u1", Plan: "free"}, entitlements: ent, feature: access.FeatureExportPDF, want: http.StatusForbidden},
		{name: "lookup error", user: &auth.UserContext{UserID: "u1", Plan: "free"}, entitlements: failingEntitlements{}, feature: access.FeatureExportPDF, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), *tt.user))
			}
			rec := httptest.NewRecorder()
			RequireFeature(tt.feature, tt.entitlements)(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
