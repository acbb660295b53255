package pg

import (
	"context"
	"time"

	infraconfig "stockdata-pipeline/internal/infrastructure/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "stockdata-pipeline"

// DB owns the process-wide connection pool.
type DB struct{ Pool *pgxpool.Pool }

// Connect creates a small pool. Connections are established lazily, so an
// unreachable server surfaces on first use rather than here.
func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = infraconfig.DefaultPGMaxConns
	cfg.MinConns = infraconfig.DefaultPGMinConns
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() { d.Pool.Close() }

// Ping checks a pooled connection; used by readiness probes.
func (d *DB) Ping(ctx context.Context) error { return d.Pool.Ping(ctx) }
