package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/risk"
	"github.com/nexus-trading/warden/internal/storage"
	"github.com/nexus-trading/warden/internal/verify"
)

// ErrInFlight is returned by Begin when the pair already has an
// evaluation or a live position. At most one task per pair exists at
// any time.
var ErrInFlight = errors.New("pair already in flight")

// Bridge submits orders to the execution backend. Implementations own
// per-order retry; an error from Enter or Exit means the order is not
// going to happen on this attempt chain.
type Bridge interface {
	Enter(ctx context.Context, pairAddress string, amountUSD decimal.Decimal, slippageBps int) (string, error)
	Exit(ctx context.Context, pairAddress string, amountUSD decimal.Decimal, reason string) (string, error)
}

// PriceSource returns the current price for a pair.
type PriceSource interface {
	Price(ctx context.Context, pairAddress string) (decimal.Decimal, error)
}

// Config holds manager-level cadences.
type Config struct {
	PollInterval time.Duration // default price poll cadence for recovered positions
	PriceTimeout time.Duration // budget for a single price fetch
}

// Outcome reports what Evaluate decided for a pair.
type Outcome struct {
	Opened   bool      `json:"opened"`
	Position *Position `json:"position,omitempty"`
	Reasons  []string  `json:"reasons,omitempty"`
}

// Stop result values returned by StopTrade.
const (
	StopTriggered      = "stopping"
	StopAlreadyClosing = "already_closing"
	StopNoPosition     = "no_position"
)

// evaluation tracks an in-flight EVALUATING task before any position
// row exists.
type evaluation struct {
	pairAddress  string
	tokenAddress string
	startedAt    time.Time
	cancelled    bool
	cancelReason string
}

// handle carries the control channel of one monitor goroutine.
type handle struct {
	stopCh chan struct{}
}

// Manager owns the per-pair position lifecycle: it reserves evaluation
// slots, opens positions through the execution bridge, runs one monitor
// goroutine per live position and drives exits. It is the only writer
// of position state.
type Manager struct {
	cfg    Config
	store  Store
	gate   *risk.Gate
	bridge Bridge
	prices PriceSource
	deny   *blacklist.List
	logger zerolog.Logger

	mu       sync.RWMutex
	inflight map[string]*evaluation
	live     map[string]*Position
	monitors map[string]*handle

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	onOpen  func(*Position)
	onExit  func(*Position, ExitDecision)
	onClose func(*Position)
	onAlert func(pairAddress, msg string)

	evaluations       atomic.Int64
	opened            atomic.Int64
	rejected          atomic.Int64
	closed            atomic.Int64
	stopLossExits     atomic.Int64
	takeProfitExits   atomic.Int64
	manualExits       atomic.Int64
	forcedExits       atomic.Int64
	consistencyFaults atomic.Int64
	pollErrors        atomic.Int64
}

// NewManager creates a position manager. deny may be nil when no
// blacklist re-check at open time is wanted.
func NewManager(cfg Config, store Store, gate *risk.Gate, bridge Bridge, prices PriceSource, deny *blacklist.List) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		gate:     gate,
		bridge:   bridge,
		prices:   prices,
		deny:     deny,
		logger:   log.With().Str("component", "position").Logger(),
		inflight: make(map[string]*evaluation),
		live:     make(map[string]*Position),
		monitors: make(map[string]*handle),
		quit:     make(chan struct{}),
	}
}

// SetOnOpen registers a callback fired after a position opens.
func (m *Manager) SetOnOpen(fn func(*Position)) { m.onOpen = fn }

// SetOnExit registers a callback fired when an exit condition triggers,
// before the sell order is submitted.
func (m *Manager) SetOnExit(fn func(*Position, ExitDecision)) { m.onExit = fn }

// SetOnClose registers a callback fired after a position reaches CLOSED.
func (m *Manager) SetOnClose(fn func(*Position)) { m.onClose = fn }

// SetOnAlert registers a callback for conditions needing operator
// attention: forced closes and consistency faults.
func (m *Manager) SetOnAlert(fn func(pairAddress, msg string)) { m.onAlert = fn }

// Begin reserves the pair for evaluation. It fails with ErrInFlight if
// an evaluation or live position already exists, which makes concurrent
// submissions of the same pair collapse to a single task.
func (m *Manager) Begin(pairAddress, tokenAddress string) error {
	if pairAddress == "" {
		return storage.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.inflight[pairAddress]; exists {
		return ErrInFlight
	}
	if pos, exists := m.live[pairAddress]; exists && pos.IsLive() {
		return ErrInFlight
	}

	m.inflight[pairAddress] = &evaluation{
		pairAddress:  pairAddress,
		tokenAddress: tokenAddress,
		startedAt:    time.Now(),
	}

	m.logger.Debug().Str("pair", pairAddress).Msg("evaluation started")
	return nil
}

// Abort releases an evaluation slot without a decision, used when
// verification could not complete at all.
func (m *Manager) Abort(pairAddress, reason string) {
	m.mu.Lock()
	_, exists := m.inflight[pairAddress]
	delete(m.inflight, pairAddress)
	m.mu.Unlock()

	if exists {
		m.rejected.Add(1)
		m.logger.Info().Str("pair", pairAddress).Str("reason", reason).Msg("evaluation aborted")
	}
}

// CancelEvaluation marks any in-flight evaluation touching the given
// address (pair or token) as cancelled. The evaluation still finishes
// its provider calls but can no longer open a position.
func (m *Manager) CancelEvaluation(address, reason string) int {
	if address == "" {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ev := range m.inflight {
		if ev.cancelled {
			continue
		}
		if ev.pairAddress == address || ev.tokenAddress == address {
			ev.cancelled = true
			ev.cancelReason = reason
			n++
			m.logger.Warn().
				Str("pair", ev.pairAddress).
				Str("reason", reason).
				Msg("in-flight evaluation cancelled")
		}
	}
	return n
}

// StateOf reports the lifecycle state for a pair address. Pairs with no
// live position and no evaluation are IDLE regardless of history.
func (m *Manager) StateOf(pairAddress string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pos, exists := m.live[pairAddress]; exists {
		return pos.CurrentState()
	}
	if _, exists := m.inflight[pairAddress]; exists {
		return StateEvaluating
	}
	return StateIdle
}

// Evaluate decides whether a verified pair becomes a position. It must
// be preceded by a successful Begin for the same pair. Trading
// thresholds are taken from tcfg, a snapshot captured when the decision
// started; later settings updates never reach this position.
func (m *Manager) Evaluate(ctx context.Context, pair market.Pair, safety verify.Result, volume verify.VolumeVerdict, tcfg config.TradingConfig, manual bool) (Outcome, error) {
	m.evaluations.Add(1)

	m.mu.RLock()
	ev, exists := m.inflight[pair.Address]
	m.mu.RUnlock()
	if !exists {
		m.consistencyFaults.Add(1)
		return Outcome{}, &ConsistencyError{
			PairAddress: pair.Address,
			Op:          "evaluate",
			Msg:         "no evaluation in flight for pair",
		}
	}

	reasons := make([]string, 0, 4)

	m.mu.RLock()
	if ev.cancelled {
		reasons = append(reasons, fmt.Sprintf("EVALUATION_CANCELLED:%s", ev.cancelReason))
	}
	m.mu.RUnlock()

	if len(reasons) == 0 {
		if !safety.Safe {
			reasons = append(reasons, fmt.Sprintf("VERIFICATION_FAILED:source=%s,status=%s", safety.Source, safety.Status))
		}
		if !volume.Legitimate {
			reasons = append(reasons, fmt.Sprintf("FAKE_VOLUME:source=%s", volume.Source))
		}
	}

	if len(reasons) == 0 && m.gate != nil {
		decision := m.gate.Check(pair, tcfg, m.liveCount(), manual)
		if !decision.Allowed {
			reasons = append(reasons, decision.ReasonCodes...)
		}
	}

	if len(reasons) == 0 && m.deny != nil {
		for _, addr := range []string{pair.Address, pair.BaseToken.Address, safety.Deployer} {
			if addr != "" && m.deny.Contains(addr) {
				reasons = append(reasons, fmt.Sprintf("BLACKLISTED:address=%s", addr))
				break
			}
		}
	}

	// Last look before money moves: a blacklist append racing this
	// evaluation must win.
	m.mu.RLock()
	if len(reasons) == 0 && ev.cancelled {
		reasons = append(reasons, fmt.Sprintf("EVALUATION_CANCELLED:%s", ev.cancelReason))
	}
	m.mu.RUnlock()

	if len(reasons) > 0 {
		return m.reject(pair, reasons), nil
	}

	amount := decimal.NewFromFloat(tcfg.TradeAmountUSD)
	orderRef, err := m.bridge.Enter(ctx, pair.Address, amount, tcfg.SlippageBps)
	if err != nil {
		m.logger.Error().Err(err).
			Str("pair", pair.Address).
			Str("amount_usd", amount.String()).
			Msg("entry order failed, pair released")
		return m.reject(pair, []string{fmt.Sprintf("ENTRY_FAILED:%v", err)}), nil
	}

	now := time.Now()
	pos := &Position{
		ID:            uuid.NewString(),
		PairAddress:   pair.Address,
		TokenAddress:  pair.BaseToken.Address,
		TokenName:     pair.BaseToken.Symbol,
		EntryPrice:    pair.PriceUSD,
		EntryTime:     now,
		StopLossPct:   decimal.NewFromFloat(tcfg.StopLossPct),
		TakeProfitPct: decimal.NewFromFloat(tcfg.TakeProfitPct),
		AmountUSD:     amount,
		SlippageBps:   tcfg.SlippageBps,
		State:         StateEvaluating,
		LastPrice:     pair.PriceUSD,
		LastPollAt:    now,
		OrderRef:      orderRef,
		UpdatedAt:     now,
	}
	if err := pos.Transition(EventOpen); err != nil {
		m.consistencyFaults.Add(1)
		return Outcome{}, err
	}

	if err := m.store.Insert(ctx, pos); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// The in-memory guard was bypassed: a live row already
			// exists for this pair. The entry order went out, so this
			// needs an operator, not a silent retry.
			m.consistencyFaults.Add(1)
			m.alert(pair.Address, fmt.Sprintf("duplicate live position for %s after entry order %s", pair.Address, orderRef))
			m.finish(pair.Address)
			return Outcome{}, &ConsistencyError{
				PairAddress: pair.Address,
				Op:          "insert",
				Msg:         "live position already persisted for pair",
			}
		}
		// Keep running on persistence errors: the order exists in the
		// world even if the row does not.
		m.logger.Error().Err(err).Str("pair", pair.Address).Msg("position insert failed")
		m.alert(pair.Address, fmt.Sprintf("position %s not persisted: %v", pos.ID, err))
	}

	interval := m.cfg.PollInterval
	if tcfg.PricePollIntervalS > 0 {
		interval = time.Duration(tcfg.PricePollIntervalS) * time.Second
	}

	h := &handle{stopCh: make(chan struct{}, 1)}
	m.mu.Lock()
	delete(m.inflight, pair.Address)
	m.live[pair.Address] = pos
	m.monitors[pair.Address] = h
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitor(pos, h, interval)

	m.opened.Add(1)
	m.logger.Info().
		Str("position_id", pos.ID).
		Str("pair", pos.PairAddress).
		Str("token", pos.TokenName).
		Str("entry_price", pos.EntryPrice.String()).
		Str("amount_usd", pos.AmountUSD.String()).
		Str("order_ref", orderRef).
		Msg("position opened")

	if m.onOpen != nil {
		m.onOpen(pos)
	}

	return Outcome{Opened: true, Position: pos}, nil
}

func (m *Manager) reject(pair market.Pair, reasons []string) Outcome {
	m.finish(pair.Address)
	m.rejected.Add(1)
	m.logger.Info().
		Str("pair", pair.Address).
		Str("token", pair.BaseToken.Symbol).
		Strs("reasons", reasons).
		Msg("pair rejected")
	return Outcome{Reasons: reasons}
}

func (m *Manager) finish(pairAddress string) {
	m.mu.Lock()
	delete(m.inflight, pairAddress)
	m.mu.Unlock()
}

func (m *Manager) liveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// StopTrade requests a manual close. Stops are idempotent: a pair with
// no live position reports no_position and a pair already closing
// reports already_closing, both without side effects.
func (m *Manager) StopTrade(pairAddress string) string {
	m.mu.RLock()
	pos, exists := m.live[pairAddress]
	h := m.monitors[pairAddress]
	m.mu.RUnlock()

	if !exists || h == nil {
		return StopNoPosition
	}

	switch pos.CurrentState() {
	case StateClosing:
		return StopAlreadyClosing
	case StateOpen:
		select {
		case h.stopCh <- struct{}{}:
		default:
			// stop already signalled
		}
		m.logger.Info().Str("pair", pairAddress).Msg("manual stop requested")
		return StopTriggered
	default:
		return StopNoPosition
	}
}

// monitor polls the pair price and drives exits for one live position.
// It exits when the position closes or the manager shuts down; in the
// latter case the position stays live in the store and is picked up by
// Recover on the next start.
func (m *Manager) monitor(pos *Position, h *handle, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Debug().
		Str("position_id", pos.ID).
		Str("pair", pos.PairAddress).
		Dur("interval", interval).
		Msg("monitor started")

	for {
		select {
		case <-m.quit:
			m.logger.Debug().Str("pair", pos.PairAddress).Msg("monitor suspended")
			return

		case <-h.stopCh:
			m.handleManualStop(pos)
			return

		case <-ticker.C:
			cctx, cancel := context.WithTimeout(context.Background(), m.cfg.PriceTimeout)
			price, err := m.prices.Price(cctx, pos.PairAddress)
			cancel()
			if err != nil {
				m.pollErrors.Add(1)
				m.logger.Warn().Err(err).Str("pair", pos.PairAddress).Msg("price poll failed")
				continue
			}

			pnl := pos.ObservePrice(price, time.Now())
			m.logger.Debug().
				Str("pair", pos.PairAddress).
				Str("price", price.String()).
				Str("pnl_pct", pnl.StringFixed(2)).
				Msg("price sample")

			decision := EvaluateExit(pos, price, false)
			if decision.Triggered {
				m.executeExit(pos, decision)
				return
			}
		}
	}
}

// handleManualStop runs the exit evaluation one final time with the
// manual flag set. Protective conditions keep their priority: if the
// last price already breaches the stop-loss, the close is reported as
// STOP_LOSS, not MANUAL_STOP.
func (m *Manager) handleManualStop(pos *Position) {
	cctx, cancel := context.WithTimeout(context.Background(), m.cfg.PriceTimeout)
	price, err := m.prices.Price(cctx, pos.PairAddress)
	cancel()
	if err != nil {
		m.pollErrors.Add(1)
		pos.mu.Lock()
		price = pos.LastPrice
		pos.mu.Unlock()
	} else {
		pos.ObservePrice(price, time.Now())
	}

	decision := EvaluateExit(pos, price, true)
	if !decision.Triggered {
		// Cannot happen with manual=true, but never strand a stop.
		decision.Triggered = true
		decision.Reason = ReasonManualStop
		decision.Price = price
	}
	m.executeExit(pos, decision)
}

// executeExit moves the position to CLOSING, submits the sell order and
// settles the final state. An exit that fails after the bridge's retry
// budget forces the position to CLOSED unconfirmed and raises a
// critical alert; the position is never silently reopened.
func (m *Manager) executeExit(pos *Position, decision ExitDecision) {
	if err := pos.Transition(EventExitTrigger); err != nil {
		m.consistencyFaults.Add(1)
		m.logger.Warn().Err(err).Str("pair", pos.PairAddress).Msg("exit skipped")
		return
	}

	pos.mu.Lock()
	pos.ExitReason = string(decision.Reason)
	pos.mu.Unlock()

	ctx := context.Background()
	if err := m.store.Update(ctx, pos); err != nil {
		m.logger.Error().Err(err).Str("pair", pos.PairAddress).Msg("closing state not persisted")
	}

	m.logger.Info().
		Str("position_id", pos.ID).
		Str("pair", pos.PairAddress).
		Str("reason", string(decision.Reason)).
		Str("price", decision.Price.String()).
		Str("pnl_pct", decision.PnLPct.StringFixed(2)).
		Msg("exit triggered")

	if m.onExit != nil {
		m.onExit(pos, decision)
	}

	ref, err := m.bridge.Exit(ctx, pos.PairAddress, pos.AmountUSD, string(decision.Reason))
	if err != nil {
		m.forceClose(pos, err)
		return
	}

	if terr := pos.Transition(EventExitConfirm); terr != nil {
		m.consistencyFaults.Add(1)
		m.logger.Error().Err(terr).Str("pair", pos.PairAddress).Msg("exit confirmation rejected by state machine")
		return
	}

	pos.mu.Lock()
	pos.ExitConfirmed = true
	if ref != "" {
		pos.OrderRef = ref
	}
	pos.mu.Unlock()

	m.settle(pos, decision.Reason)
	m.logger.Info().
		Str("position_id", pos.ID).
		Str("pair", pos.PairAddress).
		Str("reason", string(decision.Reason)).
		Msg("position closed")
}

// forceClose settles a position whose sell order could not be executed.
// The state is CLOSED with confirmed=false so reporting never counts it
// as a realized exit, and the operator is alerted.
func (m *Manager) forceClose(pos *Position, cause error) {
	if err := pos.Transition(EventExitForce); err != nil {
		m.consistencyFaults.Add(1)
		m.logger.Error().Err(err).Str("pair", pos.PairAddress).Msg("forced close rejected by state machine")
		return
	}

	pos.mu.Lock()
	pos.ExitConfirmed = false
	pos.Forced = true
	reason := ExitReason(pos.ExitReason)
	pos.mu.Unlock()

	m.forcedExits.Add(1)
	m.settle(pos, reason)

	msg := fmt.Sprintf("exit order failed after retries for %s (position %s): %v; closed unconfirmed, manual intervention required", pos.PairAddress, pos.ID, cause)
	m.logger.Error().
		Str("position_id", pos.ID).
		Str("pair", pos.PairAddress).
		Err(cause).
		Msg("position force-closed, exit unconfirmed")
	m.alert(pos.PairAddress, msg)
}

// settle persists the terminal state, updates counters and releases the
// pair.
func (m *Manager) settle(pos *Position, reason ExitReason) {
	if err := m.store.Update(context.Background(), pos); err != nil {
		m.logger.Error().Err(err).Str("pair", pos.PairAddress).Msg("closed state not persisted")
	}

	switch reason {
	case ReasonStopLoss:
		m.stopLossExits.Add(1)
	case ReasonTakeProfit:
		m.takeProfitExits.Add(1)
	case ReasonManualStop:
		m.manualExits.Add(1)
	}
	m.closed.Add(1)

	m.mu.Lock()
	delete(m.live, pos.PairAddress)
	delete(m.monitors, pos.PairAddress)
	m.mu.Unlock()

	if m.onClose != nil {
		m.onClose(pos)
	}
}

func (m *Manager) alert(pairAddress, msg string) {
	if m.onAlert != nil {
		m.onAlert(pairAddress, msg)
	}
}

// Recover loads live positions from the store and resumes them before
// any new intake runs. OPEN positions get a fresh monitor; CLOSING
// positions re-drive their exit immediately. Recovered positions are
// not re-verified.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	rows, err := m.store.Live(ctx)
	if err != nil {
		return 0, fmt.Errorf("load live positions: %w", err)
	}

	for _, pos := range rows {
		h := &handle{stopCh: make(chan struct{}, 1)}

		m.mu.Lock()
		m.live[pos.PairAddress] = pos
		m.monitors[pos.PairAddress] = h
		m.mu.Unlock()

		switch pos.CurrentState() {
		case StateClosing:
			m.logger.Warn().
				Str("position_id", pos.ID).
				Str("pair", pos.PairAddress).
				Msg("resuming interrupted exit")
			m.wg.Add(1)
			go func(p *Position) {
				defer m.wg.Done()
				m.resumeExit(p)
			}(pos)
		default:
			m.logger.Info().
				Str("position_id", pos.ID).
				Str("pair", pos.PairAddress).
				Str("state", string(pos.CurrentState())).
				Msg("resuming position monitor")
			m.wg.Add(1)
			go m.monitor(pos, h, m.cfg.PollInterval)
		}
	}

	return len(rows), nil
}

// resumeExit finishes an exit that was in flight when the process died.
func (m *Manager) resumeExit(pos *Position) {
	pos.mu.Lock()
	reason := ExitReason(pos.ExitReason)
	pos.mu.Unlock()
	if reason == "" {
		reason = ReasonManualStop
	}

	ref, err := m.bridge.Exit(context.Background(), pos.PairAddress, pos.AmountUSD, string(reason))
	if err != nil {
		m.forceClose(pos, err)
		return
	}

	if terr := pos.Transition(EventExitConfirm); terr != nil {
		m.consistencyFaults.Add(1)
		m.logger.Error().Err(terr).Str("pair", pos.PairAddress).Msg("resumed exit rejected by state machine")
		return
	}

	pos.mu.Lock()
	pos.ExitConfirmed = true
	if ref != "" {
		pos.OrderRef = ref
	}
	pos.mu.Unlock()

	m.settle(pos, reason)
	m.logger.Info().Str("position_id", pos.ID).Str("pair", pos.PairAddress).Msg("interrupted exit completed")
}

// Live returns the live positions, unordered.
func (m *Manager) Live() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Position, 0, len(m.live))
	for _, pos := range m.live {
		out = append(out, pos)
	}
	return out
}

// RecentlyClosed returns positions closed within the lookback window,
// newest first.
func (m *Manager) RecentlyClosed(ctx context.Context, lookback time.Duration) ([]*Position, error) {
	return m.store.Closed(ctx, time.Now().Add(-lookback))
}

// Close stops all monitor goroutines and waits for them. Live positions
// stay persisted for the next start.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.quit)
	})
	m.wg.Wait()
}

// Stats is a point-in-time snapshot of manager counters.
type Stats struct {
	Evaluations       int64 `json:"evaluations"`
	Opened            int64 `json:"opened"`
	Rejected          int64 `json:"rejected"`
	Closed            int64 `json:"closed"`
	Live              int   `json:"live"`
	InFlight          int   `json:"in_flight"`
	StopLossExits     int64 `json:"stop_loss_exits"`
	TakeProfitExits   int64 `json:"take_profit_exits"`
	ManualExits       int64 `json:"manual_exits"`
	ForcedExits       int64 `json:"forced_exits"`
	ConsistencyFaults int64 `json:"consistency_faults"`
	PollErrors        int64 `json:"poll_errors"`
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	live := len(m.live)
	inflight := len(m.inflight)
	m.mu.RUnlock()

	return Stats{
		Evaluations:       m.evaluations.Load(),
		Opened:            m.opened.Load(),
		Rejected:          m.rejected.Load(),
		Closed:            m.closed.Load(),
		Live:              live,
		InFlight:          inflight,
		StopLossExits:     m.stopLossExits.Load(),
		TakeProfitExits:   m.takeProfitExits.Load(),
		ManualExits:       m.manualExits.Load(),
		ForcedExits:       m.forcedExits.Load(),
		ConsistencyFaults: m.consistencyFaults.Load(),
		PollErrors:        m.pollErrors.Load(),
	}
}
