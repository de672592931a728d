package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
	"payreport/internal/platform/config"
	"payreport/internal/platform/db"
	"payreport/internal/storage/memory"
	"payreport/internal/storage/postgres"
	"payreport/internal/storage/sqlite"
)

// Backend is everything the services need from storage, plus lifecycle.
type Backend interface {
	payroll.RecordReader
	payroll.RecordWriter
	reports.Store
	Ping(ctx context.Context) error
	Close() error
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		if cfg.RunMigrations {
			applied, err := db.Migrate(ctx, pool, cfg.MigrationsDir)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations failed: %w", err)
			}
			logger.Info("migrations applied", "count", len(applied), "versions", applied)
		}
		return postgres.New(pool), nil
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLiteDBPath); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return sqlite.Open(ctx, cfg.SQLiteDBPath)
	}
	return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
}
