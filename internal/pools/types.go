// Package pools holds the GeckoTerminal pool wire model and its normalization
// into the flat record the screen works on.
package pools

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawPool is a single entry of a GeckoTerminal pool listing. Every attribute
// is optional and numeric fields may arrive as numbers, numeric strings or null.
type RawPool struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Attributes    Attributes    `json:"attributes"`
	Relationships Relationships `json:"relationships"`
}

// Attributes carries the pool metrics used by the screen.
type Attributes struct {
	Name                  string  `json:"name"`
	Address               string  `json:"address"`
	FDVUSD                Float   `json:"fdv_usd"`
	ReserveInUSD          Float   `json:"reserve_in_usd"`
	VolumeUSD             Windows `json:"volume_usd"`
	PriceChangePercentage Windows `json:"price_change_percentage"`
	Txns                  Txns    `json:"txns"`
	CreatedAt             string  `json:"created_at"`
}

// Windows is a per-window metric; only the trailing 24h window is read.
type Windows struct {
	H24 Float `json:"h24"`
}

// Txns holds transaction counts per window.
type Txns struct {
	H24 TxnCounts `json:"h24"`
}

// TxnCounts is the buy/sell split of a window.
type TxnCounts struct {
	Buys  Int `json:"buys"`
	Sells Int `json:"sells"`
}

// Relationships links a pool to its network and exchange.
type Relationships struct {
	Network Relationship `json:"network"`
	Dex     Relationship `json:"dex"`
}

// Relationship is a JSON:API resource linkage.
type Relationship struct {
	Data *ResourceID `json:"data"`
}

// ResourceID identifies a related resource.
type ResourceID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ID returns the linked resource id, or "" when the linkage is absent.
func (r Relationship) ID() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ID
}

// Link returns a linkage to the given id.
func Link(id, typ string) Relationship {
	return Relationship{Data: &ResourceID{ID: id, Type: typ}}
}

// Float is an optional number. Null, missing, non-numeric and non-finite
// values all decode to the zero value with Valid=false; decoding never fails.
type Float struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	*f = Float{}
	s, ok := scalar(b)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = Float{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Int is an optional count with the same lenient decoding as Float.
// Fractional values are truncated toward zero; values outside the int64
// range decode as invalid.
type Int struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Int) UnmarshalJSON(b []byte) error {
	*n = Int{}
	s, ok := scalar(b)
	if !ok {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = Int{Value: v, Valid: true}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if err != nil || math.IsNaN(v) || v >= math.MaxInt64 || v < math.MinInt64 {
		return nil
	}
	*n = Int{Value: int64(v), Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Int) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// scalar unwraps a JSON number or string literal into its text form.
func scalar(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		return string(b), true
	}
	return "", false
}

// Normalized is the flat, immutable view of a pool.
type Normalized struct {
	Name           string
	FDVUSD         float64
	LiquidityUSD   float64
	VolumeH24      float64
	PriceChangeH24 float64
	BuysH24        int64
	SellsH24       int64
	CreatedAt      time.Time
	Network        string
	Dex            string
	PoolAddress    string
}
