package history

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for run rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore writes run rows into Postgres.
type PostgresStore struct {
	pool  execCloser
	table string
}

// NewPostgresStore connects a pool using the provided config.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "scrape_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool execCloser, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "scrape_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordRun inserts one run row.
func (s *PostgresStore) RecordRun(ctx context.Context, run Run) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	channel,
	outcome,
	started_at,
	finished_at,
	products,
	artifact_uri
) VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		run.RunID,
		run.Channel,
		run.Outcome,
		run.StartedAt,
		run.FinishedAt,
		run.Products,
		run.ArtifactURI,
	); err != nil {
		return fmt.Errorf("insert run row: %w", err)
	}
	return nil
}
