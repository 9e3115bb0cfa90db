package config

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// applyEnv overlays environment variables on cfg. Values that do not parse
// are logged and ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	float := func(key string, dst *float64) {
		v, ok := get(key)
		if !ok {
			return
		}
		f, err := finite(v)
		if err != nil {
			log.Warn().Str("env", key).Str("value", v).Msg("Ignoring invalid numeric override")
			return
		}
		*dst = f
	}
	integer := func(key string, dst *int) {
		v, ok := get(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Str("env", key).Str("value", v).Msg("Ignoring invalid integer override")
			return
		}
		*dst = n
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	f := &cfg.Filters
	float("GEMSCAN_MIN_FDV", &f.MinFDV)
	float("GEMSCAN_MAX_FDV", &f.MaxFDV)
	float("GEMSCAN_MIN_VOLUME_H24", &f.MinVolumeH24)
	float("GEMSCAN_MIN_LIQUIDITY", &f.MinLiquidity)
	float("GEMSCAN_MIN_PRICE_CHANGE_H24", &f.MinPriceChangeH24)
	float("GEMSCAN_MAX_AGE_DAYS", &f.MaxAgeDays)
	float("GEMSCAN_BUY_SELL_RATIO", &f.BuySellRatio)

	if v, ok := get("GEMSCAN_MIN_AGE_DAYS"); ok {
		if strings.EqualFold(v, "none") {
			f.MinAgeDays = nil
		} else if days, err := finite(v); err == nil {
			f.MinAgeDays = &days
		} else {
			log.Warn().Str("env", "GEMSCAN_MIN_AGE_DAYS").Str("value", v).Msg("Ignoring invalid numeric override")
		}
	}

	s := &cfg.Scan
	if v, ok := get("GEMSCAN_NETWORKS"); ok {
		var networks []string
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				networks = append(networks, n)
			}
		}
		if len(networks) > 0 {
			s.Networks = networks
		}
	}
	str("GEMSCAN_CATEGORY", &s.Category)
	str("GEMSCAN_DEX", &s.Dex)
	integer("GEMSCAN_MAX_PAGES", &s.MaxPages)
	integer("GEMSCAN_TOP_N", &s.TopN)
	str("GEMSCAN_OUTPUT", &s.Output)

	str("REDIS_ADDR", &cfg.Sinks.Redis.Addr)
	if v, ok := get("PG_DSN"); ok {
		cfg.Sinks.Postgres.DSN = v
		cfg.Sinks.Postgres.Enabled = true
	}
	if v, ok := get("PG_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Sinks.Postgres.Enabled = enabled
		} else {
			log.Warn().Str("env", "PG_ENABLED").Str("value", v).Msg("Ignoring invalid boolean override")
		}
	}
}

// finite parses v as a float, rejecting NaN and the infinities.
func finite(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}
