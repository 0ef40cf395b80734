package market

import "time"

// TradeSide is the direction of a swap from the base token's view.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is a single observed swap on a pair. Maker is the wallet that
// initiated the swap.
type Trade struct {
	PairAddress string    `json:"pair_address"`
	Maker       string    `json:"maker"`
	Side        TradeSide `json:"side"`
	AmountUSD   float64   `json:"amount_usd"`
	At          time.Time `json:"at"`
}
