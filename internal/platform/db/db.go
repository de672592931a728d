package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"payreport/internal/platform/config"
)

// Connect opens the pool and retries the first ping until cfg.DBConnectTimeout
// elapses, so the server can start before the database container is ready.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.DBConnectTimeout
	attempt := 0
	err = backoff.Retry(
		func() error {
			attempt++
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if pingErr := pool.Ping(pingCtx); pingErr != nil {
				logger.Warn("database not ready", "attempt", attempt, "error", pingErr)
				return fmt.Errorf("pool.Ping: %w", pingErr)
			}
			return nil
		},
		backoff.WithContext(policy, ctx),
	)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
