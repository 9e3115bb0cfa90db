// Package screen applies the low-cap thresholds to normalized pools and ranks
// the survivors.
package screen

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sawpanic/gemscan/internal/pools"
)

// DefaultTopN is the number of results kept after ranking.
const DefaultTopN = 30

// Thresholds is the conjunction of bounds a pool must satisfy. All numeric
// bounds are strict. MinAgeDays is optional; when nil only the upper age
// bound applies.
type Thresholds struct {
	MinFDV            float64  `yaml:"min_fdv" json:"min_fdv"`
	MaxFDV            float64  `yaml:"max_fdv" json:"max_fdv"`
	MinVolumeH24      float64  `yaml:"min_volume_h24" json:"min_volume_h24"`
	MinLiquidity      float64  `yaml:"min_liquidity" json:"min_liquidity"`
	MinPriceChangeH24 float64  `yaml:"min_price_change_h24" json:"min_price_change_h24"`
	MinAgeDays        *float64 `yaml:"min_age_days,omitempty" json:"min_age_days,omitempty"`
	MaxAgeDays        float64  `yaml:"max_age_days" json:"max_age_days"`
	BuySellRatio      float64  `yaml:"buy_sell_ratio" json:"buy_sell_ratio"`
}

// Validate checks that the bounds are finite and describe a non-empty window.
func (t Thresholds) Validate() error {
	bounds := []struct {
		name string
		v    float64
	}{
		{"min_fdv", t.MinFDV},
		{"max_fdv", t.MaxFDV},
		{"min_volume_h24", t.MinVolumeH24},
		{"min_liquidity", t.MinLiquidity},
		{"min_price_change_h24", t.MinPriceChangeH24},
		{"max_age_days", t.MaxAgeDays},
		{"buy_sell_ratio", t.BuySellRatio},
	}
	if t.MinAgeDays != nil {
		bounds = append(bounds, struct {
			name string
			v    float64
		}{"min_age_days", *t.MinAgeDays})
	}
	for _, b := range bounds {
		if math.IsNaN(b.v) || math.IsInf(b.v, 0) {
			return fmt.Errorf("%s must be finite, got %g", b.name, b.v)
		}
	}
	if t.MinFDV >= t.MaxFDV {
		return fmt.Errorf("min_fdv (%g) must be < max_fdv (%g)", t.MinFDV, t.MaxFDV)
	}
	if t.MaxAgeDays <= 0 {
		return fmt.Errorf("max_age_days must be positive, got %g", t.MaxAgeDays)
	}
	if t.MinAgeDays != nil && *t.MinAgeDays >= t.MaxAgeDays {
		return fmt.Errorf("min_age_days (%g) must be < max_age_days (%g)", *t.MinAgeDays, t.MaxAgeDays)
	}
	if t.BuySellRatio < 0 {
		return fmt.Errorf("buy_sell_ratio cannot be negative, got %g", t.BuySellRatio)
	}
	return nil
}

// Reason names the first predicate a pool failed.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonFDV         Reason = "fdv"
	ReasonVolume      Reason = "volume"
	ReasonLiquidity   Reason = "liquidity"
	ReasonPriceChange Reason = "price_change"
	ReasonAge         Reason = "age"
	ReasonNoBuys      Reason = "no_buys"
	ReasonBuySell     Reason = "buy_sell_ratio"

	// ReasonNoCreatedAt is recorded before screening for pools without a
	// usable creation time.
	ReasonNoCreatedAt Reason = "no_created_at"
)

// Reasons lists every drop reason, normalization first, then the screen in
// evaluation order.
var Reasons = []Reason{ReasonNoCreatedAt, ReasonFDV, ReasonVolume, ReasonLiquidity, ReasonPriceChange, ReasonAge, ReasonNoBuys, ReasonBuySell}

// Evaluate reports whether the pool passes every threshold at now. When it
// does not, the returned Reason is the first failing predicate.
func (t Thresholds) Evaluate(p pools.Normalized, now time.Time) (bool, Reason) {
	if !(t.MinFDV < p.FDVUSD && p.FDVUSD < t.MaxFDV) {
		return false, ReasonFDV
	}
	if !(p.VolumeH24 > t.MinVolumeH24) {
		return false, ReasonVolume
	}
	if !(p.LiquidityUSD > t.MinLiquidity) {
		return false, ReasonLiquidity
	}
	if !(p.PriceChangeH24 > t.MinPriceChangeH24) {
		return false, ReasonPriceChange
	}
	age := AgeDays(p.CreatedAt, now)
	if !(age < t.MaxAgeDays) || (t.MinAgeDays != nil && !(*t.MinAgeDays < age)) {
		return false, ReasonAge
	}
	if p.BuysH24 <= 0 {
		return false, ReasonNoBuys
	}
	if !(BuySellRatio(p.BuysH24, p.SellsH24) > t.BuySellRatio) {
		return false, ReasonBuySell
	}
	return true, ReasonNone
}

// Keep is Evaluate without the reason.
func (t Thresholds) Keep(p pools.Normalized, now time.Time) bool {
	ok, _ := t.Evaluate(p, now)
	return ok
}

// BuySellRatio divides buys by sells, flooring sells at one.
func BuySellRatio(buys, sells int64) float64 {
	if sells < 1 {
		sells = 1
	}
	return float64(buys) / float64(sells)
}

// AgeDays is the elapsed time from createdAt to now in fractional days.
func AgeDays(createdAt, now time.Time) float64 {
	return now.Sub(createdAt).Hours() / 24
}

// GeckoLink is the public GeckoTerminal page of a pool.
func GeckoLink(network, address string) string {
	return fmt.Sprintf("https://www.geckoterminal.com/%s/pools/%s", network, address)
}

// Result is a pool that passed the screen, with its derived fields. Field
// order is the report's key order.
type Result struct {
	Name           string  `json:"name"`
	FDVUSD         float64 `json:"fdv_usd"`
	LiquidityUSD   float64 `json:"liquidity_usd"`
	VolumeH24      float64 `json:"volume_h24"`
	PriceChangeH24 float64 `json:"price_change_h24"`
	BuySellRatio   float64 `json:"buy_sell_ratio"`
	AgeDays        float64 `json:"age_days"`
	Network        string  `json:"network"`
	PoolAddress    string  `json:"pool_address"`
	GeckoLink      string  `json:"gecko_link"`
}

// NewResult derives the reported fields of p at now.
func NewResult(p pools.Normalized, now time.Time) Result {
	return Result{
		Name:           p.Name,
		FDVUSD:         p.FDVUSD,
		LiquidityUSD:   p.LiquidityUSD,
		VolumeH24:      p.VolumeH24,
		PriceChangeH24: p.PriceChangeH24,
		BuySellRatio:   BuySellRatio(p.BuysH24, p.SellsH24),
		AgeDays:        AgeDays(p.CreatedAt, now),
		Network:        p.Network,
		PoolAddress:    p.PoolAddress,
		GeckoLink:      GeckoLink(p.Network, p.PoolAddress),
	}
}

// Rank sorts results by 24h price change, highest first, and keeps the first
// topN. Equal changes keep their input order. The input is not modified.
func Rank(results []Result, topN int) []Result {
	ranked := make([]Result, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PriceChangeH24 > ranked[j].PriceChangeH24
	})

	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
