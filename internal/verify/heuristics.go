package verify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
)

// TradeSource supplies recently observed trades for a pair.
type TradeSource interface {
	RecentTrades(ctx context.Context, pairAddress string) ([]market.Trade, error)
}

// Heuristics is the fallback VolumeProvider used when no external
// volume checker is configured. It scores a pair's recent trades on
// five checks; failing any one marks the volume as fake.
type Heuristics struct {
	cfg    config.HeuristicsConfig
	trades TradeSource
}

// NewHeuristics creates the heuristic analyzer.
func NewHeuristics(cfg config.HeuristicsConfig, trades TradeSource) *Heuristics {
	return &Heuristics{cfg: cfg, trades: trades}
}

// Analyze implements VolumeProvider.
func (h *Heuristics) Analyze(ctx context.Context, pair market.Pair) (VolumeVerdict, error) {
	trades, err := h.trades.RecentTrades(ctx, pair.Address)
	if err != nil {
		return VolumeVerdict{}, fmt.Errorf("fetch recent trades: %w", err)
	}

	verdict := VolumeVerdict{
		Source:    "heuristics",
		CheckedAt: time.Now(),
	}

	if len(trades) == 0 {
		// Reported volume with nothing observed behind it is its own
		// red flag. A genuinely quiet pair passes.
		if pair.Volume24h > 0 {
			verdict.Reasons = append(verdict.Reasons, "reported volume with no observed trades")
			return verdict, nil
		}
		verdict.Legitimate = true
		verdict.Score = 1.0
		return verdict, nil
	}

	const totalChecks = 5.0
	passed := 0.0

	buysByMaker := make(map[string]int)
	sellsByMaker := make(map[string]int)
	totalVolume := 0.0
	for _, t := range trades {
		if t.Side == market.TradeBuy {
			buysByMaker[t.Maker]++
		} else {
			sellsByMaker[t.Maker]++
		}
		totalVolume += t.AmountUSD
	}

	makers := make(map[string]struct{}, len(trades))
	for m := range buysByMaker {
		makers[m] = struct{}{}
	}
	for m := range sellsByMaker {
		makers[m] = struct{}{}
	}
	if len(makers) >= h.cfg.MinUniqueTraders {
		passed++
	} else {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("unique traders %d below %d", len(makers), h.cfg.MinUniqueTraders))
	}

	// Wash volume: turnover attributed to wallets trading both sides.
	washVolume := 0.0
	selfTrades := 0
	for _, t := range trades {
		if buysByMaker[t.Maker] > 0 && sellsByMaker[t.Maker] > 0 {
			washVolume += t.AmountUSD
		}
	}
	for m, buys := range buysByMaker {
		if sells := sellsByMaker[m]; sells > 0 {
			if buys < sells {
				selfTrades += buys
			} else {
				selfTrades += sells
			}
		}
	}

	washPct := 0.0
	if totalVolume > 0 {
		washPct = washVolume / totalVolume * 100
	}
	if washPct <= h.cfg.MaxWashTradePct {
		passed++
	} else {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("wash trade volume %.1f%% above %.1f%%", washPct, h.cfg.MaxWashTradePct))
	}

	if selfTrades <= h.cfg.MaxSelfTrades {
		passed++
	} else {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("self trades %d above %d", selfTrades, h.cfg.MaxSelfTrades))
	}

	if gap := averageGapSeconds(trades); gap >= float64(h.cfg.MinTradeGapS) || len(trades) < 2 {
		passed++
	} else {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("average trade gap %.0fs below %ds", gap, h.cfg.MinTradeGapS))
	}

	if repeats := maxRepeatedAmount(trades); repeats <= h.cfg.MaxRepeatedAmounts {
		passed++
	} else {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("identical trade amount repeated %d times, max %d", repeats, h.cfg.MaxRepeatedAmounts))
	}

	verdict.Score = passed / totalChecks
	verdict.Legitimate = len(verdict.Reasons) == 0
	return verdict, nil
}

// averageGapSeconds is the mean spacing between consecutive trades.
// Bots spraying fake turnover trade far tighter than organic flow.
func averageGapSeconds(trades []market.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	ts := make([]time.Time, len(trades))
	for i, t := range trades {
		ts[i] = t.At
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	total := 0.0
	for i := 1; i < len(ts); i++ {
		total += ts[i].Sub(ts[i-1]).Seconds()
	}
	return total / float64(len(ts)-1)
}

// maxRepeatedAmount counts the most frequent trade size, rounded to
// cents. Scripted volume tends to reuse the exact same notional.
func maxRepeatedAmount(trades []market.Trade) int {
	counts := make(map[int64]int)
	best := 0
	for _, t := range trades {
		key := int64(t.AmountUSD * 100)
		counts[key]++
		if counts[key] > best {
			best = counts[key]
		}
	}
	return best
}
