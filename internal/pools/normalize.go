package pools

import (
	"strings"
	"time"
)

// Normalize flattens a raw pool. It returns false when the pool has no usable
// creation timestamp; such pools cannot be age-screened and are skipped.
func Normalize(raw RawPool) (Normalized, bool) {
	attr := raw.Attributes

	createdAt, ok := ParseCreatedAt(attr.CreatedAt)
	if !ok {
		return Normalized{}, false
	}

	return Normalized{
		Name:           attr.Name,
		FDVUSD:         attr.FDVUSD.Value,
		LiquidityUSD:   attr.ReserveInUSD.Value,
		VolumeH24:      attr.VolumeUSD.H24.Value,
		PriceChangeH24: attr.PriceChangePercentage.H24.Value,
		BuysH24:        attr.Txns.H24.Buys.Value,
		SellsH24:       attr.Txns.H24.Sells.Value,
		CreatedAt:      createdAt,
		Network:        raw.Relationships.Network.ID(),
		Dex:            raw.Relationships.Dex.ID(),
		PoolAddress:    attr.Address,
	}, true
}

// ParseCreatedAt parses an ISO-8601 timestamp. A trailing "Z" is rewritten to
// an explicit +00:00 offset first; the result is always in UTC.
func ParseCreatedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
