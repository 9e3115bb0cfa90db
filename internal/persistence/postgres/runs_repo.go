package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/gemscan/internal/persistence"
)

// runsRepo implements RunsRepo for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a PostgreSQL runs repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{
		db:      db,
		timeout: timeout,
	}
}

const insertToken = `
		INSERT INTO scan_tokens (run_id, rank, name, network, pool_address, fdv_usd,
			liquidity_usd, volume_h24, price_change_h24, buy_sell_ratio, age_days, gecko_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Insert stores the run row and its tokens in one transaction
func (r *runsRepo) Insert(ctx context.Context, run persistence.Run, tokens []persistence.Token) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (id, preset, run_at, matched, reported, report)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Preset, run.RunAt, run.Matched, run.Reported, run.Report)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", persistence.ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, t := range tokens {
		_, err := tx.ExecContext(ctx, insertToken,
			run.ID, t.Rank, t.Name, t.Network, t.PoolAddress, t.FDVUSD,
			t.LiquidityUSD, t.VolumeH24, t.PriceChangeH24, t.BuySellRatio, t.AgeDays, t.GeckoLink)
		if err != nil {
			return fmt.Errorf("failed to insert token %d of run %s: %w", t.Rank, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// List retrieves runs of a preset within the time range, newest first
func (r *runsRepo) List(ctx context.Context, preset string, tr persistence.TimeRange, limit int) ([]persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	from, to := tr.From, tr.To
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}

	query := `
		SELECT id, preset, run_at, matched, reported, report, created_at
		FROM scan_runs
		WHERE preset = $1 AND run_at >= $2 AND run_at <= $3
		ORDER BY run_at DESC
		LIMIT $4`

	var runs []persistence.Run
	if err := r.db.SelectContext(ctx, &runs, query, preset, from, to, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Tokens retrieves the tokens of a run in rank order
func (r *runsRepo) Tokens(ctx context.Context, runID string) ([]persistence.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, rank, name, network, pool_address, fdv_usd, liquidity_usd,
			volume_h24, price_change_h24, buy_sell_ratio, age_days, gecko_link
		FROM scan_tokens
		WHERE run_id = $1
		ORDER BY rank`

	var tokens []persistence.Token
	if err := r.db.SelectContext(ctx, &tokens, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list tokens of run %s: %w", runID, err)
	}
	return tokens, nil
}
