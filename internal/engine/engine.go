// Package engine wires discovery, intake, verification, risk gating
// and position management into one decision pipeline, and exposes the
// operations the control plane calls. It owns startup ordering: the
// blacklist loads and persisted positions recover before the first new
// pair is admitted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/audit"
	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/feed"
	"github.com/nexus-trading/warden/internal/intake"
	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/notify"
	"github.com/nexus-trading/warden/internal/observability"
	"github.com/nexus-trading/warden/internal/position"
	"github.com/nexus-trading/warden/internal/risk"
	"github.com/nexus-trading/warden/internal/verify"
)

// PairData serves on-demand pair snapshots for analyze requests and
// manual trade starts. Implemented by the DexScreener client.
type PairData interface {
	Pair(ctx context.Context, pairAddress string) (market.Pair, error)
}

// Deps are the engine's collaborators. Verifier, Volume, Manager,
// Gate, Blacklist, Dispatcher and Pairs are required; the rest may be
// nil and the engine skips them.
type Deps struct {
	Verifier   *verify.Verifier
	Volume     *verify.VolumeAnalyzer
	Manager    *position.Manager
	Gate       *risk.Gate
	Blacklist  *blacklist.List
	Dispatcher *notify.Dispatcher
	Pairs      PairData

	Trail    *audit.Trail
	Metrics  *observability.Metrics
	Analyses *journal.AnalysisLog
	Trades   *journal.Recorder

	Poller *feed.Poller
	Stream *feed.Stream
	Window *feed.TradeWindow
}

// Engine runs the pipeline feed → intake → verification → gate →
// position manager. All decisions funnel through Submit; the control
// plane operations live in ops.go.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger

	intake     *intake.Intake
	verifier   *verify.Verifier
	volume     *verify.VolumeAnalyzer
	manager    *position.Manager
	gate       *risk.Gate
	deny       *blacklist.List
	dispatcher *notify.Dispatcher
	pairs      PairData

	trail    *audit.Trail
	metrics  *observability.Metrics
	analyses *journal.AnalysisLog
	trades   *journal.Recorder

	poller *feed.Poller
	stream *feed.Stream
	window *feed.TradeWindow

	// Active trading thresholds. Swapped whole by UpdateSettings;
	// every decision snapshots the pointer once and never rereads.
	settings atomic.Pointer[config.TradingConfig]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	startedAt    time.Time
	analyzed     atomic.Int64
	manualStarts atomic.Int64
	manualStops  atomic.Int64
}

// New assembles an engine. The intake stage is built here because it
// calls back into the engine for every admitted pair.
func New(cfg *config.Config, deps Deps) *Engine {
	e := &Engine{
		cfg:        cfg,
		logger:     log.With().Str("component", "engine").Logger(),
		verifier:   deps.Verifier,
		volume:     deps.Volume,
		manager:    deps.Manager,
		gate:       deps.Gate,
		deny:       deps.Blacklist,
		dispatcher: deps.Dispatcher,
		pairs:      deps.Pairs,
		trail:      deps.Trail,
		metrics:    deps.Metrics,
		analyses:   deps.Analyses,
		trades:     deps.Trades,
		poller:     deps.Poller,
		stream:     deps.Stream,
		window:     deps.Window,
	}

	tcfg := cfg.Trading
	e.settings.Store(&tcfg)

	e.intake = intake.New(cfg.Discovery, cfg.Filters, deps.Blacklist, tracker{deps.Manager}, e.evaluate)

	deps.Manager.SetOnOpen(e.onPositionOpened)
	deps.Manager.SetOnExit(e.onExitTriggered)
	deps.Manager.SetOnClose(e.onPositionClosed)
	deps.Manager.SetOnAlert(e.onAlert)
	deps.Blacklist.SetOnAppend(e.onBlacklistAppend)

	return e
}

// tracker adapts the manager's state view to the intake in-flight
// check: anything not IDLE already has an evaluation or a live
// position.
type tracker struct {
	m *position.Manager
}

func (t tracker) InFlight(pairAddress string) bool {
	return t.m.StateOf(pairAddress) != position.StateIdle
}

// Start brings the engine up in dependency order: blacklist, then
// notification worker, then position recovery, then the discovery
// feeds. No new pair can enter before every persisted live position
// has its monitor back.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.startedAt = time.Now()

	if err := e.deny.Load(e.ctx); err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}
	if e.metrics != nil {
		e.metrics.BlacklistSize.Set(float64(e.deny.Size()))
	}

	e.dispatcher.Start()

	recovered, err := e.manager.Recover(e.ctx)
	if err != nil {
		return fmt.Errorf("recover positions: %w", err)
	}
	if e.metrics != nil {
		e.metrics.LivePositions.Set(float64(e.manager.Stats().Live))
	}

	if e.stream != nil {
		ch, err := e.stream.Start(e.ctx)
		if err != nil {
			return fmt.Errorf("start pair stream: %w", err)
		}
		e.wg.Add(1)
		go e.pump(ch)
	}
	if e.poller != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.poller.Run(e.ctx)
		}()
	}
	if e.window != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.window.Run(e.ctx)
		}()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.intake.Run(e.ctx)
	}()

	e.logger.Info().
		Int("recovered_positions", recovered).
		Int("blacklist_entries", e.deny.Size()).
		Str("chain", e.cfg.General.Chain).
		Msg("engine started")
	return nil
}

// Stop cancels the feeds, waits for in-flight evaluations, closes the
// position monitors and flushes notifications, in that order.
func (e *Engine) Stop() {
	if !e.started.Load() || e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.manager.Close()
	e.dispatcher.Close()
	e.logger.Info().Msg("engine stopped")
}

// pump forwards stream snapshots into intake until the channel closes.
func (e *Engine) pump(ch <-chan market.Pair) {
	defer e.wg.Done()
	for pair := range ch {
		e.Submit(e.ctx, pair, "stream")
	}
}

// Submit pushes one observed pair snapshot into the pipeline. It is
// the target of every feed callback and returns as soon as the intake
// decision is made; evaluation continues on its own goroutine.
func (e *Engine) Submit(ctx context.Context, pair market.Pair, source string) {
	if e.metrics != nil {
		e.metrics.PairsObserved.Inc()
	}
	res := e.intake.Submit(ctx, pair, source)
	if res.Accepted || e.metrics == nil {
		return
	}
	e.metrics.PairsRejected.WithLabelValues(res.Reason).Inc()
	switch res.Reason {
	case intake.ReasonBlacklistedPair, intake.ReasonBlacklistedToken:
		e.metrics.BlacklistHits.Inc()
	}
}

// evaluate is the intake callback: reserve the pair's evaluation slot
// and hand off to the pipeline goroutine. A Begin failure means a
// concurrent feed won the pair; nothing to undo.
func (e *Engine) evaluate(ctx context.Context, pair market.Pair, source string) {
	if err := e.manager.Begin(pair.Address, pair.BaseToken.Address); err != nil {
		e.logger.Debug().
			Str("pair", pair.Address).
			Str("source", source).
			Msg("pair already in flight")
		return
	}
	if e.metrics != nil {
		e.metrics.PairsAccepted.Inc()
	}

	traceID := uuid.NewString()
	e.publish(traceID, notify.PairObserved(pair.Address, pair.BaseToken.Symbol))
	if e.trail != nil {
		e.trail.Record(traceID, audit.EventPairSeen, pair.Address, "accepted", pair)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runPipeline(traceID, pair)
	}()
}

// runPipeline carries one admitted pair through verification and the
// entry decision. Errors out of Evaluate are consistency faults; they
// kill this pair's task and nothing else.
func (e *Engine) runPipeline(traceID string, pair market.Pair) {
	ctx := e.ctx

	safety, verdict := e.check(ctx, traceID, pair)
	tcfg := e.Settings()

	outcome, err := e.manager.Evaluate(ctx, pair, safety, verdict, tcfg, false)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ConsistencyViolations.Inc()
		}
		e.logger.Error().Err(err).
			Str("trace_id", traceID).
			Str("pair", pair.Address).
			Msg("evaluation failed")
		e.observe(ctx, pair, &safety, &verdict, journal.DecisionError)
		return
	}

	if outcome.Opened {
		if e.trail != nil {
			e.trail.Record(traceID, audit.EventOrder, pair.Address, "entry", outcome.Position)
		}
		e.observe(ctx, pair, &safety, &verdict, journal.DecisionOpened)
		return
	}

	if e.metrics != nil {
		e.metrics.PairsRejected.WithLabelValues(rejectClass(outcome.Reasons)).Inc()
	}
	e.publish(traceID, notify.TradeDenied(pair.Address, pair.BaseToken.Symbol, outcome.Reasons))
	if e.trail != nil {
		e.trail.Record(traceID, audit.EventRiskCheck, pair.Address, "denied", outcome.Reasons)
	}
	e.observe(ctx, pair, &safety, &verdict, journal.DecisionRejected)
}

// check runs the safety and volume verifications concurrently. Both
// always produce a verdict; a failed provider fails closed inside the
// verifier.
func (e *Engine) check(ctx context.Context, traceID string, pair market.Pair) (verify.Result, verify.VolumeVerdict) {
	var (
		wg      sync.WaitGroup
		safety  verify.Result
		verdict verify.VolumeVerdict
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		started := time.Now()
		safety = e.verifier.Verify(ctx, pair)
		e.observeCheck(safety.Source, safety.Status, safety.Status == verify.StatusError, time.Since(started))
	}()
	go func() {
		defer wg.Done()
		started := time.Now()
		verdict = e.volume.Analyze(ctx, pair)
		outcome := "legitimate"
		if !verdict.Legitimate {
			outcome = "fake"
		}
		e.observeCheck(verdict.Source, outcome, false, time.Since(started))
	}()
	wg.Wait()

	if e.trail != nil {
		e.trail.Record(traceID, audit.EventVerification, pair.Address,
			fmt.Sprintf("safe=%t legitimate=%t", safety.Safe, verdict.Legitimate),
			map[string]any{"safety": safety, "volume": verdict})
	}
	return safety, verdict
}

func (e *Engine) observeCheck(provider, outcome string, providerErr bool, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.VerificationChecks.WithLabelValues(provider, outcome).Inc()
	e.metrics.VerificationLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if providerErr {
		e.metrics.ProviderErrors.WithLabelValues(provider).Inc()
	}
}

// observe journals the pipeline decision for a pair snapshot.
func (e *Engine) observe(ctx context.Context, pair market.Pair, safety *verify.Result, verdict *verify.VolumeVerdict, decision string) {
	if e.analyses == nil {
		return
	}
	suspicious := market.SuspiciousPatterns(pair, e.cfg.Filters.MaxPriceImpactPct)
	event := market.Classify(pair, suspicious)
	e.analyses.Observe(ctx, pair, event, suspicious, safety, verdict, decision)
}

// publish stamps the trace id on an event and hands it to the
// dispatcher. Never blocks.
func (e *Engine) publish(traceID string, ev notify.Event) {
	ev.TraceID = traceID
	e.dispatcher.Publish(ev)
}

// rejectClass maps a rejection reason list to a bounded metric label.
// The first reason wins: Evaluate orders them by pipeline stage.
func rejectClass(reasons []string) string {
	if len(reasons) == 0 {
		return "unknown"
	}
	switch {
	case strings.HasPrefix(reasons[0], "EVALUATION_CANCELLED"):
		return "cancelled"
	case strings.HasPrefix(reasons[0], "VERIFICATION_FAILED"):
		return "verification_failed"
	case strings.HasPrefix(reasons[0], "FAKE_VOLUME"):
		return "fake_volume"
	case strings.HasPrefix(reasons[0], "BLACKLISTED"):
		return "blacklisted"
	case strings.HasPrefix(reasons[0], "ENTRY_FAILED"):
		return "entry_failed"
	default:
		return "gate_denied"
	}
}

// onPositionOpened fans a fresh position out to notify and metrics.
// The manager already persisted and logged it.
func (e *Engine) onPositionOpened(pos *position.Position) {
	if e.metrics != nil {
		e.metrics.PositionsOpened.Inc()
		e.metrics.OrdersSubmitted.WithLabelValues(string(market.TradeBuy)).Inc()
		e.metrics.LivePositions.Inc()
	}
	e.publish(pos.ID, notify.PositionOpened(pos))
}

// onExitTriggered reports an exit condition firing; the sell order is
// in flight when this runs.
func (e *Engine) onExitTriggered(pos *position.Position, decision position.ExitDecision) {
	if e.metrics != nil {
		e.metrics.OrdersSubmitted.WithLabelValues(string(market.TradeSell)).Inc()
	}
	if e.trail != nil {
		e.trail.RecordTransition(pos.ID, pos.PairAddress, string(position.StateOpen), string(position.StateClosing))
		e.trail.Record(pos.ID, audit.EventOrder, pos.PairAddress, string(decision.Reason), decision)
	}
	e.publish(pos.ID, notify.ExitTriggered(pos, decision))
}

// onPositionClosed settles the bookkeeping for a closed position:
// trade journal, metrics, audit, notification.
func (e *Engine) onPositionClosed(pos *position.Position) {
	if e.trades != nil {
		e.trades.RecordClose(e.ctx, pos)
	}
	if e.metrics != nil {
		e.metrics.PositionsClosed.WithLabelValues(pos.ExitReason).Inc()
		e.metrics.LivePositions.Dec()
		if pos.Forced {
			e.metrics.ForcedCloses.Inc()
		}
	}
	if e.trail != nil {
		e.trail.RecordTransition(pos.ID, pos.PairAddress, string(position.StateClosing), string(position.StateClosed))
	}
	e.publish(pos.ID, notify.PositionClosed(pos))
}

// onAlert relays manager alerts that need an operator now.
func (e *Engine) onAlert(pairAddress, msg string) {
	if e.metrics != nil {
		e.metrics.ConsistencyViolations.Inc()
	}
	e.publish("", notify.CriticalAlert(pairAddress, msg))
}

// onBlacklistAppend cancels any in-flight evaluation touching the
// banned address and announces the append.
func (e *Engine) onBlacklistAppend(entry blacklist.Entry) {
	cancelled := e.manager.CancelEvaluation(entry.Address, fmt.Sprintf("blacklisted: %s", entry.Reason))
	if cancelled > 0 {
		e.logger.Warn().
			Str("address", entry.Address).
			Int("cancelled", cancelled).
			Msg("blacklist append cancelled in-flight evaluations")
	}
	if e.metrics != nil {
		e.metrics.BlacklistAppends.Inc()
		e.metrics.BlacklistSize.Set(float64(e.deny.Size()))
	}
	if e.trail != nil {
		e.trail.Record("", audit.EventBlacklist, "", string(entry.Kind), entry)
	}
	e.publish("", notify.BlacklistAppended(entry))
}
