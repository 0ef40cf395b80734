package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/verify"
)

// TradeWindow is a rolling buffer of observed trades per pair. The
// volume heuristics read it when no external volume provider is
// available.
type TradeWindow struct {
	window     time.Duration
	maxPerPair int

	mu     sync.RWMutex
	trades map[string][]market.Trade

	recorded atomic.Int64
}

var _ verify.TradeSource = (*TradeWindow)(nil)

// NewTradeWindow creates a trade window. Zero values fall back to a
// 30 minute window capped at 500 trades per pair.
func NewTradeWindow(window time.Duration, maxPerPair int) *TradeWindow {
	if window <= 0 {
		window = 30 * time.Minute
	}
	if maxPerPair <= 0 {
		maxPerPair = 500
	}
	return &TradeWindow{
		window:     window,
		maxPerPair: maxPerPair,
		trades:     make(map[string][]market.Trade, 64),
	}
}

// Record stores one trade, dropping the oldest when the pair is at
// capacity.
func (w *TradeWindow) Record(trade market.Trade) {
	if trade.PairAddress == "" {
		return
	}
	if trade.At.IsZero() {
		trade.At = time.Now()
	}
	w.recorded.Add(1)

	w.mu.Lock()
	defer w.mu.Unlock()

	buf := w.trades[trade.PairAddress]
	if len(buf) >= w.maxPerPair {
		buf = buf[1:]
	}
	w.trades[trade.PairAddress] = append(buf, trade)
}

// RecentTrades returns the trades observed for a pair inside the
// window, oldest first. An untracked pair yields an empty slice.
func (w *TradeWindow) RecentTrades(_ context.Context, pairAddress string) ([]market.Trade, error) {
	cutoff := time.Now().Add(-w.window)

	w.mu.RLock()
	defer w.mu.RUnlock()

	buf := w.trades[pairAddress]
	out := make([]market.Trade, 0, len(buf))
	for _, t := range buf {
		if t.At.After(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Forget drops all trades for a pair. Called when a pair leaves the
// pipeline.
func (w *TradeWindow) Forget(pairAddress string) {
	w.mu.Lock()
	delete(w.trades, pairAddress)
	w.mu.Unlock()
}

// Run prunes expired trades until the context is cancelled.
func (w *TradeWindow) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.prune()
		}
	}
}

func (w *TradeWindow) prune() {
	cutoff := time.Now().Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	for pair, buf := range w.trades {
		kept := buf[:0]
		for _, t := range buf {
			if t.At.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(w.trades, pair)
			continue
		}
		w.trades[pair] = kept
	}
}

// TradeWindowStats is a snapshot of window counters.
type TradeWindowStats struct {
	Recorded     int64 `json:"recorded"`
	TrackedPairs int   `json:"tracked_pairs"`
}

func (w *TradeWindow) Stats() TradeWindowStats {
	w.mu.RLock()
	tracked := len(w.trades)
	w.mu.RUnlock()

	return TradeWindowStats{
		Recorded:     w.recorded.Load(),
		TrackedPairs: tracked,
	}
}
