// Package postgres stores the run history in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Connect opens a small pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one short batch per process
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id         TEXT PRIMARY KEY,
	preset     TEXT NOT NULL,
	run_at     TIMESTAMPTZ NOT NULL,
	matched    INTEGER NOT NULL,
	reported   INTEGER NOT NULL,
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS scan_runs_preset_run_at ON scan_runs (preset, run_at DESC);
CREATE TABLE IF NOT EXISTS scan_tokens (
	run_id           TEXT NOT NULL REFERENCES scan_runs (id) ON DELETE CASCADE,
	rank             INTEGER NOT NULL,
	name             TEXT NOT NULL,
	network          TEXT NOT NULL,
	pool_address     TEXT NOT NULL,
	fdv_usd          DOUBLE PRECISION NOT NULL,
	liquidity_usd    DOUBLE PRECISION NOT NULL,
	volume_h24       DOUBLE PRECISION NOT NULL,
	price_change_h24 DOUBLE PRECISION NOT NULL,
	buy_sell_ratio   DOUBLE PRECISION NOT NULL,
	age_days         DOUBLE PRECISION NOT NULL,
	gecko_link       TEXT NOT NULL,
	PRIMARY KEY (run_id, rank)
);`

// EnsureSchema creates the history tables when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
