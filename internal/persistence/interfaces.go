// Package persistence defines the run history kept alongside the report file.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateRun is returned when a run id has already been stored.
var ErrDuplicateRun = errors.New("duplicate run")

// TimeRange is a window over run times, both ends inclusive. A zero end is
// unbounded; the repository applies it in the query.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Run is one completed scan.
type Run struct {
	ID        string    `json:"id" db:"id"`
	Preset    string    `json:"preset" db:"preset"`
	RunAt     time.Time `json:"run_at" db:"run_at"`
	Matched   int       `json:"matched" db:"matched"`   // survivors before truncation
	Reported  int       `json:"reported" db:"reported"` // tokens in the report
	Report    []byte    `json:"report" db:"report"`     // the exact file body
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Token is one ranked entry of a run's report.
type Token struct {
	RunID          string  `json:"run_id" db:"run_id"`
	Rank           int     `json:"rank" db:"rank"`
	Name           string  `json:"name" db:"name"`
	Network        string  `json:"network" db:"network"`
	PoolAddress    string  `json:"pool_address" db:"pool_address"`
	FDVUSD         float64 `json:"fdv_usd" db:"fdv_usd"`
	LiquidityUSD   float64 `json:"liquidity_usd" db:"liquidity_usd"`
	VolumeH24      float64 `json:"volume_h24" db:"volume_h24"`
	PriceChangeH24 float64 `json:"price_change_h24" db:"price_change_h24"`
	BuySellRatio   float64 `json:"buy_sell_ratio" db:"buy_sell_ratio"`
	AgeDays        float64 `json:"age_days" db:"age_days"`
	GeckoLink      string  `json:"gecko_link" db:"gecko_link"`
}

// RunsRepo stores runs and their tokens.
type RunsRepo interface {
	// Insert stores a run and its tokens atomically.
	Insert(ctx context.Context, run Run, tokens []Token) error

	// List returns runs of preset inside tr, newest first.
	List(ctx context.Context, preset string, tr TimeRange, limit int) ([]Run, error)

	// Tokens returns the tokens of a run in rank order.
	Tokens(ctx context.Context, runID string) ([]Token, error)
}
