package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token identifies one side of a trading pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Pair is an immutable snapshot of a DEX pair at a single observation.
// Every poll produces a new value; a Pair is never mutated in place.
type Pair struct {
	Chain      string `json:"chain"`
	DexID      string `json:"dex_id"`
	Address    string `json:"pair_address"`
	BaseToken  Token  `json:"base_token"`
	QuoteToken Token  `json:"quote_token"`

	PriceUSD       decimal.Decimal `json:"price_usd"`
	PriceChange1h  float64         `json:"price_change_1h"`
	PriceChange24h float64         `json:"price_change_24h"`

	Volume5m  float64 `json:"volume_5m"`
	Volume1h  float64 `json:"volume_1h"`
	Volume6h  float64 `json:"volume_6h"`
	Volume24h float64 `json:"volume_24h"`

	LiquidityUSD float64 `json:"liquidity_usd"`

	Buys24h  int `json:"buys_24h"`
	Sells24h int `json:"sells_24h"`

	Labels    []string  `json:"labels,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	ObservedAt time.Time `json:"observed_at"`
}

// Age returns how long the pair has existed at the given instant.
// Zero CreatedAt means the feed did not report a creation time; age is
// then unknown and reported as zero.
func (p Pair) Age(now time.Time) time.Duration {
	if p.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(p.CreatedAt)
}

// HasLabel reports whether the feed tagged the pair with the label.
func (p Pair) HasLabel(label string) bool {
	for _, l := range p.Labels {
		if l == label {
			return true
		}
	}
	return false
}
