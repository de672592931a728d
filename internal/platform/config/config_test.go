package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ADDR", "APP_ENV", "MAX_BODY_BYTES", "RATE_LIMIT_PER_MINUTE", "DATA_BACKEND", "PLAN_FEATURES", "DB_CONNECT_TIMEOUT", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.DataBackend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.DataBackend)
	}
	if cfg.DBConnectTimeout != 30*time.Second {
		t.Fatalf("expected 30s connect timeout, got %s", cfg.DBConnectTimeout)
	}
	if got := cfg.PlanFeatures["pro"]; len(got) != 3 {
		t.Fatalf("expected three pro features, got %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_BACKEND", "SQLite")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DB_CONNECT_TIMEOUT", "5s")

	cfg := Load()
	if cfg.DataBackend != BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.DataBackend)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.DBConnectTimeout != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.DBConnectTimeout)
	}
}

func TestParsePlanFeatures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		plan string
		want []string
	}{
		{name: "single", raw: "free:annual_dashboard", plan: "free", want: []string{"annual_dashboard"}},
		{name: "spaces", raw: " pro : export_pdf , export_xlsx ; ", plan: "pro", want: []string{"export_pdf", "export_xlsx"}},
		{name: "no colon ignored", raw: "broken;free:a", plan: "broken", want: nil},
		{name: "empty plan ignored", raw: ":a", plan: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePlanFeatures(tt.raw)[tt.plan]
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		Environment:        "production",
		DataBackend:        BackendPostgres,
		MaxBodyBytes:       10,
		RateLimitPerMinute: 60,
		DBConnectTimeout:   time.Second,
		PlanFeatures:       map[string][]string{"free": {"annual_dashboard"}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, fragment := range []string{"DATABASE_URL", "JWT_SECRET", "MAX_BODY_BYTES"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %s in %q", fragment, err.Error())
		}
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := Config{
		DataBackend:        "redis",
		MaxBodyBytes:       2048,
		RateLimitPerMinute: 1,
		DBConnectTimeout:   time.Second,
		PlanFeatures:       map[string][]string{"free": nil},
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATA_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}
}
