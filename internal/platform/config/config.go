package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const defaultPlanFeatures = "free:annual_dashboard;pro:annual_dashboard,export_pdf,export_xlsx"

type Config struct {
	Addr               string
	Environment        string
	LogLevel           string
	DataBackend        string
	DatabaseURL        string
	SQLiteDBPath       string
	MigrationsDir      string
	RunMigrations      bool
	DBConnectTimeout   time.Duration
	JWTSecret          string
	FixturesFile       string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	PlanFeatures       map[string][]string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DataBackend:        strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/payreport.db"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		DBConnectTimeout:   getEnvDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		FixturesFile:       getEnv("FIXTURES_FILE", ""),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		PlanFeatures:       ParsePlanFeatures(getEnv("PLAN_FEATURES", defaultPlanFeatures)),
	}
}

// ParsePlanFeatures reads "plan:feat,feat;plan:feat". Blank entries are skipped.
func ParsePlanFeatures(raw string) map[string][]string {
	plans := map[string][]string{}
	for _, entry := range strings.Split(raw, ";") {
		plan, features, ok := strings.Cut(strings.TrimSpace(entry), ":")
		plan = strings.TrimSpace(plan)
		if !ok || plan == "" {
			continue
		}
		plans[plan] = append(plans[plan], splitList(features)...)
	}
	return plans
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.DataBackend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DATA_BACKEND=postgres"))
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errs = append(errs, errors.New("SQLITE_DB_PATH is required when DATA_BACKEND=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATA_BACKEND must be one of memory, postgres, sqlite (got %q)", c.DataBackend))
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set to a strong value in production"))
	}
	if c.MaxBodyBytes < 1024 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be at least 1024"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if c.DBConnectTimeout <= 0 {
		errs = append(errs, errors.New("DB_CONNECT_TIMEOUT must be positive"))
	}
	if len(c.PlanFeatures) == 0 {
		errs = append(errs, errors.New("PLAN_FEATURES must define at least one plan"))
	}
	return errors.Join(errs...)
}
