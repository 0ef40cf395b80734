// Package execution submits buy and sell orders through a broker with
// bounded retry. The bridge is the only component that talks to the
// money-moving side; everything above it deals in decisions.
package execution

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/position"
)

// Config controls retry behaviour for order submission.
type Config struct {
	Timeout      time.Duration // budget for a single submission attempt
	MaxRetries   int           // additional attempts after the first
	RetryBackoff time.Duration // base backoff, doubled per retry
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
}

// Bridge routes entry and exit orders to the configured broker. Failed
// attempts are retried with exponential backoff, but only when the
// broker classified the failure as retryable; rejections and invalid
// requests fail immediately. An error from Enter or Exit means the
// retry budget is spent.
type Bridge struct {
	cfg    Config
	broker Broker
	logger zerolog.Logger

	buys     atomic.Int64
	sells    atomic.Int64
	retries  atomic.Int64
	failures atomic.Int64
}

var _ position.Bridge = (*Bridge)(nil)

// NewBridge creates an execution bridge over the broker.
func NewBridge(cfg Config, broker Broker) *Bridge {
	cfg.applyDefaults()
	return &Bridge{
		cfg:    cfg,
		broker: broker,
		logger: log.With().Str("component", "execution").Str("broker", broker.Name()).Logger(),
	}
}

// Enter submits a buy order for the pair.
func (b *Bridge) Enter(ctx context.Context, pairAddress string, amountUSD decimal.Decimal, slippageBps int) (string, error) {
	return b.submit(ctx, market.TradeBuy, pairAddress, amountUSD, slippageBps)
}

// Exit submits a sell order for the pair. The reason is carried for
// logging only; the broker sells the full position either way.
func (b *Bridge) Exit(ctx context.Context, pairAddress string, amountUSD decimal.Decimal, reason string) (string, error) {
	b.logger.Info().
		Str("pair", pairAddress).
		Str("reason", reason).
		Msg("submitting exit order")
	return b.submit(ctx, market.TradeSell, pairAddress, amountUSD, 0)
}

func (b *Bridge) submit(ctx context.Context, side market.TradeSide, pairAddress string, amountUSD decimal.Decimal, slippageBps int) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			b.retries.Add(1)
			wait := b.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			b.logger.Warn().
				Str("pair", pairAddress).
				Str("side", string(side)).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("order retry")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				b.failures.Add(1)
				return "", fmt.Errorf("%s order for %s aborted: %w", side, pairAddress, ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		order, err := b.broker.Submit(attemptCtx, side, pairAddress, amountUSD, slippageBps)
		cancel()

		if err == nil {
			b.count(side)
			b.logger.Info().
				Str("pair", pairAddress).
				Str("side", string(side)).
				Str("ref", order.Ref).
				Str("amount_usd", amountUSD.String()).
				Int("attempts", attempt+1).
				Msg("order submitted")
			return order.Ref, nil
		}

		lastErr = err
		if !Retryable(err) {
			b.logger.Error().Err(err).
				Str("pair", pairAddress).
				Str("side", string(side)).
				Msg("order failed terminally")
			break
		}
	}

	b.failures.Add(1)
	return "", fmt.Errorf("%s order for %s failed: %w", side, pairAddress, lastErr)
}

func (b *Bridge) count(side market.TradeSide) {
	if side == market.TradeBuy {
		b.buys.Add(1)
	} else {
		b.sells.Add(1)
	}
}

// Stats are cumulative submission counters.
type Stats struct {
	Buys     int64 `json:"buys"`
	Sells    int64 `json:"sells"`
	Retries  int64 `json:"retries"`
	Failures int64 `json:"failures"`
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Buys:     b.buys.Load(),
		Sells:    b.sells.Load(),
		Retries:  b.retries.Load(),
		Failures: b.failures.Load(),
	}
}
