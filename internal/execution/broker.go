package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/market"
)

// Order is a submitted broker order. Ref is the broker's reference for
// the submission; for the telegram broker it is the command message ID,
// for the paper broker a synthetic counter.
type Order struct {
	Ref         string           `json:"ref"`
	Pair        string           `json:"pair"`
	Side        market.TradeSide `json:"side"`
	AmountUSD   decimal.Decimal  `json:"amount_usd"`
	SlippageBps int              `json:"slippage_bps"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// Broker submits a single order attempt. Implementations classify
// failures as *ExecError so the bridge can decide whether to retry;
// they never retry internally.
type Broker interface {
	Submit(ctx context.Context, side market.TradeSide, pairAddress string, amountUSD decimal.Decimal, slippageBps int) (Order, error)
	Name() string
}
