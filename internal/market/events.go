package market

import "fmt"

// EventType categorizes what a pair snapshot is doing right now.
type EventType string

const (
	EventPotentialRug        EventType = "potential_rug"
	EventSignificantPump     EventType = "significant_pump"
	EventHighLiquidityVolume EventType = "high_liquidity_volume"
	EventCexListed           EventType = "cex_listed"
	EventSuspiciousActivity  EventType = "suspicious_activity"
	EventNormalTrading       EventType = "normal_trading"
)

const (
	rugDropPct       = -90
	pumpRisePct      = 100
	pumpMinVolumeUSD = 100_000
	highLiquidityUSD = 1_000_000
	highVolumeUSD    = 500_000
)

// SuspiciousPatterns returns human-readable warnings for snapshot
// shapes that historically preceded rugs and honeypots. maxImpactPct
// bounds the acceptable absolute 1h price move.
func SuspiciousPatterns(p Pair, maxImpactPct float64) []string {
	var patterns []string

	impact := p.PriceChange1h
	if impact < 0 {
		impact = -impact
	}
	if maxImpactPct > 0 && impact > maxImpactPct {
		patterns = append(patterns, fmt.Sprintf("High price impact: %.1f%%", p.PriceChange1h))
	}

	if p.Sells24h == 0 && p.Buys24h > 0 {
		patterns = append(patterns, "Possible honeypot: no sell transactions")
	}

	return patterns
}

// Classify buckets a snapshot into an event type. The first matching
// rule wins; rug detection is checked before everything else.
func Classify(p Pair, suspicious []string) EventType {
	switch {
	case p.PriceChange24h <= rugDropPct:
		return EventPotentialRug
	case p.PriceChange24h >= pumpRisePct && p.Volume24h > pumpMinVolumeUSD:
		return EventSignificantPump
	case p.LiquidityUSD > highLiquidityUSD && p.Volume24h > highVolumeUSD:
		return EventHighLiquidityVolume
	case p.HasLabel("cex"):
		return EventCexListed
	case len(suspicious) > 0:
		return EventSuspiciousActivity
	default:
		return EventNormalTrading
	}
}
