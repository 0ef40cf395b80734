package risk

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
)

// Decision is the outcome of a pre-trade risk check. ReasonCodes is
// empty when the trade is allowed; otherwise it lists every violated
// constraint, not just the first one.
type Decision struct {
	Allowed     bool     `json:"allowed"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// Gate performs pre-trade checks against the structural filters and the
// current trading settings. It also carries the operator switches: a
// pause blocks new entries until resumed, a kill stays on for the
// process lifetime.
type Gate struct {
	filters config.FiltersConfig
	logger  zerolog.Logger

	paused atomic.Bool
	killed atomic.Bool

	checks  atomic.Int64
	denials atomic.Int64
}

// NewGate creates a gate with the given structural filters.
func NewGate(filters config.FiltersConfig) *Gate {
	return &Gate{
		filters: filters,
		logger:  log.With().Str("component", "risk").Logger(),
	}
}

// Check evaluates whether opening a position on the pair is allowed.
// open is the current number of live positions; manual marks an
// operator-initiated trade, which bypasses the auto-trade switch but
// nothing else.
func (g *Gate) Check(pair market.Pair, tcfg config.TradingConfig, open int, manual bool) Decision {
	g.checks.Add(1)

	var codes []string

	if g.killed.Load() {
		codes = append(codes, "KILL_SWITCH_ACTIVE")
	}
	if g.paused.Load() {
		codes = append(codes, "TRADING_PAUSED")
	}
	if !manual && !tcfg.AutoTrade {
		codes = append(codes, "AUTO_TRADE_DISABLED")
	}
	if tcfg.MaxOpenPositions > 0 && open >= tcfg.MaxOpenPositions {
		codes = append(codes, fmt.Sprintf("MAX_POSITIONS:open=%d,max=%d", open, tcfg.MaxOpenPositions))
	}
	if g.filters.MinLiquidityUSD > 0 && pair.LiquidityUSD < g.filters.MinLiquidityUSD {
		codes = append(codes, fmt.Sprintf("LOW_LIQUIDITY:liq=%.0f,min=%.0f", pair.LiquidityUSD, g.filters.MinLiquidityUSD))
	}
	if g.filters.MinVolume24hUSD > 0 && pair.Volume24h < g.filters.MinVolume24hUSD {
		codes = append(codes, fmt.Sprintf("LOW_VOLUME:vol=%.0f,min=%.0f", pair.Volume24h, g.filters.MinVolume24hUSD))
	}
	// Pairs without a creation timestamp skip the age check; the
	// verification layer judges those on its own signals.
	if g.filters.MinAgeHours > 0 && !pair.CreatedAt.IsZero() {
		age := pair.Age(time.Now())
		if age.Hours() < g.filters.MinAgeHours {
			codes = append(codes, fmt.Sprintf("PAIR_TOO_YOUNG:age_h=%.1f,min_h=%.1f", age.Hours(), g.filters.MinAgeHours))
		}
	}

	if len(codes) > 0 {
		g.denials.Add(1)
		g.logger.Debug().
			Str("pair", pair.Address).
			Strs("codes", codes).
			Msg("trade denied")
		return Decision{Allowed: false, ReasonCodes: codes}
	}

	return Decision{Allowed: true}
}

// Pause blocks new entries until Resume. Live positions are unaffected.
func (g *Gate) Pause() {
	if g.paused.CompareAndSwap(false, true) {
		g.logger.Warn().Msg("trading paused")
	}
}

// Resume lifts a pause. A kill switch cannot be resumed.
func (g *Gate) Resume() {
	if g.paused.CompareAndSwap(true, false) {
		g.logger.Warn().Msg("trading resumed")
	}
}

// Kill permanently blocks new entries for the process lifetime.
func (g *Gate) Kill(reason string) {
	if g.killed.CompareAndSwap(false, true) {
		g.logger.Error().Str("reason", reason).Msg("kill switch activated")
	}
}

// Paused reports the pause switch.
func (g *Gate) Paused() bool { return g.paused.Load() }

// Killed reports the kill switch.
func (g *Gate) Killed() bool { return g.killed.Load() }

// Stats is a snapshot of gate counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Denials int64 `json:"denials"`
	Paused  bool  `json:"paused"`
	Killed  bool  `json:"killed"`
}

// Stats returns current counters and switch states.
func (g *Gate) Stats() Stats {
	return Stats{
		Checks:  g.checks.Load(),
		Denials: g.denials.Load(),
		Paused:  g.paused.Load(),
		Killed:  g.killed.Load(),
	}
}
