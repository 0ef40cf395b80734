package execution

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/market"
)

// PaperBroker simulates order submission for dry runs and tests.
// Orders are recorded, never executed anywhere. Failures can be
// injected to exercise the bridge's retry path.
type PaperBroker struct {
	mu      sync.Mutex
	orders  []Order
	nextID  atomic.Int64
	latency time.Duration

	failCount     int
	failCode      ErrorCode
	failRetryable bool
}

var _ Broker = (*PaperBroker)(nil)

// NewPaperBroker creates a paper broker. latency simulates submission
// time; set 0 for instant acceptance in tests.
func NewPaperBroker(latency time.Duration) *PaperBroker {
	pb := &PaperBroker{latency: latency}
	pb.nextID.Store(1)
	log.Info().Dur("latency", latency).Msg("paper broker initialized")
	return pb
}

// FailNext makes the next n submissions fail with the given
// classification before the broker starts accepting again.
func (pb *PaperBroker) FailNext(n int, code ErrorCode, retryable bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.failCount = n
	pb.failCode = code
	pb.failRetryable = retryable
}

func (pb *PaperBroker) Submit(ctx context.Context, side market.TradeSide, pairAddress string, amountUSD decimal.Decimal, slippageBps int) (Order, error) {
	if pb.latency > 0 {
		select {
		case <-time.After(pb.latency):
		case <-ctx.Done():
			return Order{}, &ExecError{Code: CodeTimeout, Op: string(side), Pair: pairAddress, Retryable: true, Err: ctx.Err()}
		}
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.failCount > 0 {
		pb.failCount--
		return Order{}, &ExecError{
			Code:      pb.failCode,
			Op:        string(side),
			Pair:      pairAddress,
			Retryable: pb.failRetryable,
			Err:       fmt.Errorf("injected %s failure", pb.failCode),
		}
	}

	order := Order{
		Ref:         fmt.Sprintf("PAPER-%d", pb.nextID.Add(1)-1),
		Pair:        pairAddress,
		Side:        side,
		AmountUSD:   amountUSD,
		SlippageBps: slippageBps,
		SubmittedAt: time.Now(),
	}
	pb.orders = append(pb.orders, order)

	log.Info().
		Str("ref", order.Ref).
		Str("pair", pairAddress).
		Str("side", string(side)).
		Str("amount_usd", amountUSD.String()).
		Msg("paper broker: order accepted")

	return order, nil
}

// Orders returns a snapshot of all accepted orders.
func (pb *PaperBroker) Orders() []Order {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	out := make([]Order, len(pb.orders))
	copy(out, pb.orders)
	return out
}

func (pb *PaperBroker) Name() string { return "paper" }
