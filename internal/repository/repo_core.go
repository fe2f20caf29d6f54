package repository

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository wraps the pgx pool behind the trend persistence API.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository opens a pooled Postgres connection. Pool sizing comes
// from DB_MAX_OPEN_CONNS / DB_MAX_IDLE_CONNS when set; the server-side
// timeouts come from DB_STATEMENT_TIMEOUT / DB_IDLE_TX_TIMEOUT, both
// in milliseconds.
func NewRepository(dbURL string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if n, ok := envInt32("DB_MAX_OPEN_CONNS"); ok {
		cfg.MaxConns = n
	}
	if n, ok := envInt32("DB_MAX_IDLE_CONNS"); ok {
		cfg.MinConns = n
	}

	// Recycle connections so none outlive a deploy for long.
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	// Server-side guards against runaway queries and lock-holding idle
	// transactions. Values already present in the URL win.
	params := cfg.ConnConfig.RuntimeParams
	if params == nil {
		params = map[string]string{}
		cfg.ConnConfig.RuntimeParams = params
	}
	if _, ok := params["statement_timeout"]; !ok {
		params["statement_timeout"] = envDefault("DB_STATEMENT_TIMEOUT", "300000") // 5 min
	}
	if _, ok := params["idle_in_transaction_session_timeout"]; !ok {
		params["idle_in_transaction_session_timeout"] = envDefault("DB_IDLE_TX_TIMEOUT", "120000") // 2 min
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &Repository{db: pool}, nil
}

func envInt32(key string) (int32, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Migrate applies the schema file in one round trip. Every statement in
// it is idempotent, so reruns are safe.
func (r *Repository) Migrate(schemaPath string) error {
	ddl, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", schemaPath, err)
	}
	if _, err := r.db.Exec(context.Background(), string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() {
	r.db.Close()
}

// Ping verifies database connectivity, surfaced by the status endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
