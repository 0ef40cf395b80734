package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/audit"
	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/intake"
	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/notify"
	"github.com/nexus-trading/warden/internal/position"
	"github.com/nexus-trading/warden/internal/risk"
	"github.com/nexus-trading/warden/internal/verify"
)

// AnalyzeResult is the on-demand analysis payload. The provider
// sections are nil when the corresponding provider is disabled.
type AnalyzeResult struct {
	TokenName          string                `json:"token_name"`
	PairAddress        string                `json:"pair_address"`
	CurrentPrice       decimal.Decimal       `json:"current_price"`
	PriceChange24h     float64               `json:"price_change_24h"`
	Volume24h          float64               `json:"volume_24h"`
	LiquidityUSD       float64               `json:"liquidity_usd"`
	EventType          market.EventType      `json:"event_type"`
	SuspiciousPatterns []string              `json:"suspicious_patterns,omitempty"`
	Rugcheck           *verify.Result        `json:"rugcheck_analysis,omitempty"`
	Volume             *verify.VolumeVerdict `json:"volume_analysis,omitempty"`
}

// Analyze fetches a fresh snapshot for the pair, classifies it and
// optionally runs the verification providers. The result is journaled
// but never opens a position.
func (e *Engine) Analyze(ctx context.Context, pairAddress string) (AnalyzeResult, error) {
	e.analyzed.Add(1)

	pair, err := e.pairs.Pair(ctx, pairAddress)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("fetch pair %s: %w", pairAddress, err)
	}

	suspicious := market.SuspiciousPatterns(pair, e.cfg.Filters.MaxPriceImpactPct)
	event := market.Classify(pair, suspicious)

	res := AnalyzeResult{
		TokenName:          pair.BaseToken.Name,
		PairAddress:        pair.Address,
		CurrentPrice:       pair.PriceUSD,
		PriceChange24h:     pair.PriceChange24h,
		Volume24h:          pair.Volume24h,
		LiquidityUSD:       pair.LiquidityUSD,
		EventType:          event,
		SuspiciousPatterns: suspicious,
	}

	var wg sync.WaitGroup
	if e.cfg.Providers.Rugcheck.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			safety := e.verifier.Verify(ctx, pair)
			res.Rugcheck = &safety
		}()
	}
	if e.cfg.Providers.PocketUniverse.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict := e.volume.Analyze(ctx, pair)
			res.Volume = &verdict
		}()
	}
	wg.Wait()

	if e.analyses != nil {
		e.analyses.Observe(ctx, pair, event, suspicious, res.Rugcheck, res.Volume, journal.DecisionAnalyzed)
	}
	return res, nil
}

// StartTrade statuses.
const (
	StartOpened      = "opened"
	StartAlreadyOpen = "already_open"
	StartEvaluating  = "evaluating"
	StartRejected    = "rejected"
)

// StartResult reports what a manual trade start did.
type StartResult struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

// StartTrade opens a position on operator demand. It is idempotent: a
// pair that is already open or under evaluation reports that and does
// nothing. Verification still runs; manual only bypasses the
// auto-trade switch.
func (e *Engine) StartTrade(ctx context.Context, pairAddress string) (StartResult, error) {
	e.manualStarts.Add(1)

	switch e.manager.StateOf(pairAddress) {
	case position.StateOpen, position.StateClosing:
		return StartResult{Status: StartAlreadyOpen}, nil
	case position.StateEvaluating:
		return StartResult{Status: StartEvaluating}, nil
	}

	pair, err := e.pairs.Pair(ctx, pairAddress)
	if err != nil {
		return StartResult{}, fmt.Errorf("fetch pair %s: %w", pairAddress, err)
	}

	if err := e.manager.Begin(pair.Address, pair.BaseToken.Address); err != nil {
		// The pipeline claimed the pair between the state check and
		// here; it will decide on its own.
		return StartResult{Status: StartEvaluating}, nil
	}

	traceID := "manual-" + pairAddress
	if e.trail != nil {
		e.trail.Record(traceID, audit.EventPairSeen, pair.Address, "manual_start", pair)
	}

	safety, verdict := e.check(ctx, traceID, pair)
	tcfg := e.Settings()

	outcome, err := e.manager.Evaluate(ctx, pair, safety, verdict, tcfg, true)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ConsistencyViolations.Inc()
		}
		e.observe(ctx, pair, &safety, &verdict, journal.DecisionError)
		return StartResult{}, err
	}

	if outcome.Opened {
		if e.trail != nil {
			e.trail.Record(traceID, audit.EventOrder, pair.Address, "entry", outcome.Position)
		}
		e.observe(ctx, pair, &safety, &verdict, journal.DecisionOpened)
		return StartResult{Status: StartOpened}, nil
	}

	e.publish(traceID, notify.TradeDenied(pair.Address, pair.BaseToken.Symbol, outcome.Reasons))
	if e.metrics != nil {
		e.metrics.PairsRejected.WithLabelValues(rejectClass(outcome.Reasons)).Inc()
	}
	e.observe(ctx, pair, &safety, &verdict, journal.DecisionRejected)
	return StartResult{Status: StartRejected, Reasons: outcome.Reasons}, nil
}

// StopTrade requests a manual exit. Idempotent: stopping a pair with
// no live position is a no-op reported as such.
func (e *Engine) StopTrade(pairAddress string) string {
	e.manualStops.Add(1)
	return e.manager.StopTrade(pairAddress)
}

// UpdateSettings swaps the active trading thresholds. The new snapshot
// applies to future decisions only; open positions keep the values
// they were opened with.
func (e *Engine) UpdateSettings(tcfg config.TradingConfig) error {
	if err := tcfg.Validate(); err != nil {
		return err
	}
	e.settings.Store(&tcfg)
	e.logger.Info().
		Bool("auto_trade", tcfg.AutoTrade).
		Float64("trade_amount_usd", tcfg.TradeAmountUSD).
		Float64("stop_loss_pct", tcfg.StopLossPct).
		Float64("take_profit_pct", tcfg.TakeProfitPct).
		Int("max_open_positions", tcfg.MaxOpenPositions).
		Msg("trading settings updated")
	return nil
}

// Settings returns the active trading snapshot.
func (e *Engine) Settings() config.TradingConfig {
	return *e.settings.Load()
}

// Pause blocks new entries until Resume. Live positions keep running.
func (e *Engine) Pause() { e.gate.Pause() }

// Resume lifts a pause.
func (e *Engine) Resume() { e.gate.Resume() }

// Kill permanently blocks new entries for the process lifetime.
func (e *Engine) Kill(reason string) { e.gate.Kill(reason) }

// PositionsView is the control plane positions listing.
type PositionsView struct {
	Live   []*position.Position `json:"live"`
	Closed []*position.Position `json:"closed,omitempty"`
}

// Positions returns live positions plus the last day of closed ones.
func (e *Engine) Positions(ctx context.Context) PositionsView {
	view := PositionsView{Live: e.manager.Live()}
	closed, err := e.manager.RecentlyClosed(ctx, 24*time.Hour)
	if err != nil {
		e.logger.Warn().Err(err).Msg("closed positions query failed")
		return view
	}
	view.Closed = closed
	return view
}

// BlacklistEntries returns the current blacklist, newest first.
func (e *Engine) BlacklistEntries() []blacklist.Entry {
	return e.deny.Entries()
}

// AppendBlacklist bans an address by operator request. Appending an
// already-banned address succeeds without effect.
func (e *Engine) AppendBlacklist(ctx context.Context, address string, kind blacklist.Kind, reason string) error {
	switch kind {
	case blacklist.KindToken, blacklist.KindDeployer:
	default:
		return fmt.Errorf("unknown blacklist kind %q", kind)
	}
	if reason == "" {
		reason = "manual"
	}
	return e.deny.Append(ctx, blacklist.Entry{Address: address, Kind: kind, Reason: reason})
}

// AuditByTrace returns the audit entries for one trace id.
func (e *Engine) AuditByTrace(traceID string) []audit.Entry {
	if e.trail == nil {
		return nil
	}
	return e.trail.ByTrace(traceID)
}

// AuditByPair returns the audit entries for one pair address.
func (e *Engine) AuditByPair(pairAddress string) []audit.Entry {
	if e.trail == nil {
		return nil
	}
	return e.trail.ByPair(pairAddress)
}

// AuditRecent returns the newest n audit entries.
func (e *Engine) AuditRecent(n int) []audit.Entry {
	if e.trail == nil {
		return nil
	}
	return e.trail.Recent(n)
}

// Stats aggregates counters across the pipeline for the control plane.
type Stats struct {
	StartedAt    time.Time `json:"started_at"`
	UptimeS      int64     `json:"uptime_s"`
	Analyzed     int64     `json:"analyze_requests"`
	ManualStarts int64     `json:"manual_starts"`
	ManualStops  int64     `json:"manual_stops"`

	Settings config.TradingConfig `json:"settings"`

	Intake    intake.Stats         `json:"intake"`
	Positions position.Stats       `json:"positions"`
	Verifier  verify.VerifierStats `json:"verifier"`
	Volume    verify.VolumeStats   `json:"volume"`
	Gate      risk.Stats           `json:"gate"`
	Blacklist blacklist.Stats      `json:"blacklist"`
	Notify    notify.Stats         `json:"notifications"`
}

// Stats returns a snapshot of all engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		StartedAt:    e.startedAt,
		Analyzed:     e.analyzed.Load(),
		ManualStarts: e.manualStarts.Load(),
		ManualStops:  e.manualStops.Load(),
		Settings:     e.Settings(),
		Intake:       e.intake.Stats(),
		Positions:    e.manager.Stats(),
		Verifier:     e.verifier.Stats(),
		Volume:       e.volume.Stats(),
		Gate:         e.gate.Stats(),
		Blacklist:    e.deny.Stats(),
		Notify:       e.dispatcher.Stats(),
	}
	if !e.startedAt.IsZero() {
		s.UptimeS = int64(time.Since(e.startedAt).Seconds())
	}
	return s
}
