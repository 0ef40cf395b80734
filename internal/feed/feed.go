// Package feed produces pair observations for intake: a websocket
// stream of new listings with an HTTP polling fallback, and a rolling
// window of observed trades backing the volume heuristics.
package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
)

// Source is the discovery search API. Implemented by the DexScreener
// client.
type Source interface {
	Search(ctx context.Context, query string) ([]market.Pair, error)
}

// OnPair receives every pair snapshot the feed produces.
type OnPair func(ctx context.Context, pair market.Pair, source string)

// Poller periodically runs the configured discovery queries. It is the
// fallback path: coarse and query-driven where the stream is push.
type Poller struct {
	cfg    config.DiscoveryConfig
	chain  string
	source Source
	onPair OnPair
	logger zerolog.Logger

	cycles      atomic.Int64
	fetched     atomic.Int64
	fetchErrors atomic.Int64
}

// NewPoller creates a discovery poller. Pairs on other chains are
// dropped before the callback.
func NewPoller(cfg config.DiscoveryConfig, chain string, source Source, onPair OnPair) *Poller {
	return &Poller{
		cfg:    cfg,
		chain:  chain,
		source: source,
		onPair: onPair,
		logger: log.With().Str("component", "poller").Logger(),
	}
}

// Run polls until the context is cancelled. The first cycle runs
// immediately.
func (p *Poller) Run(ctx context.Context) {
	interval := time.Duration(p.cfg.PollIntervalS) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs every configured query once, forwarding at most
// MaxPairsPerCycle pairs in total.
func (p *Poller) cycle(ctx context.Context) {
	p.cycles.Add(1)
	budget := p.cfg.MaxPairsPerCycle

	for _, query := range p.cfg.Queries {
		if budget <= 0 || ctx.Err() != nil {
			return
		}

		pairs, err := p.source.Search(ctx, query)
		if err != nil {
			p.fetchErrors.Add(1)
			p.logger.Warn().Err(err).Str("query", query).Msg("discovery query failed")
			continue
		}

		for _, pair := range pairs {
			if budget <= 0 {
				break
			}
			if p.chain != "" && pair.Chain != p.chain {
				continue
			}
			budget--
			p.fetched.Add(1)
			p.onPair(ctx, pair, "poll")
		}
	}
}

// PollerStats is a snapshot of poller counters.
type PollerStats struct {
	Cycles      int64 `json:"cycles"`
	Fetched     int64 `json:"fetched"`
	FetchErrors int64 `json:"fetch_errors"`
}

func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Cycles:      p.cycles.Load(),
		Fetched:     p.fetched.Load(),
		FetchErrors: p.fetchErrors.Load(),
	}
}
