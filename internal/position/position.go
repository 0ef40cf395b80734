package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// State represents the current lifecycle state of a pair's position.
type State string

const (
	StateIdle       State = "IDLE"
	StateEvaluating State = "EVALUATING"
	StateOpen       State = "OPEN"
	StateClosing    State = "CLOSING"
	StateClosed     State = "CLOSED"
)

// Event represents an event that triggers a state transition.
type Event string

const (
	EventAccept      Event = "ACCEPT"
	EventOpen        Event = "OPEN"
	EventReject      Event = "REJECT"
	EventExitTrigger Event = "EXIT_TRIGGER"
	EventExitConfirm Event = "EXIT_CONFIRM"
	EventExitForce   Event = "EXIT_FORCE"
)

// transition defines an allowed state machine edge.
type transition struct {
	from  State
	event Event
}

// transitions is the authoritative transition table. Every valid
// (currentState, event) pair maps to exactly one target state. A
// position can never reach CLOSED from OPEN without passing CLOSING.
var transitions = map[transition]State{
	{StateIdle, EventAccept}:         StateEvaluating,
	{StateEvaluating, EventOpen}:     StateOpen,
	{StateEvaluating, EventReject}:   StateClosed,
	{StateOpen, EventExitTrigger}:    StateClosing,
	{StateClosing, EventExitConfirm}: StateClosed,
	{StateClosing, EventExitForce}:   StateClosed,
}

// Position tracks one live trade on a pair. Exactly one live position
// (OPEN or CLOSING) may exist per pair address at any time; the manager
// and the storage layer both enforce it. Thresholds are frozen at open:
// settings updates never touch an existing position.
type Position struct {
	mu sync.Mutex

	ID           string `json:"id"`
	PairAddress  string `json:"pair_address"`
	TokenAddress string `json:"token_address"`
	TokenName    string `json:"token_name"`

	EntryPrice    decimal.Decimal `json:"entry_price"`
	EntryTime     time.Time       `json:"entry_time"`
	StopLossPct   decimal.Decimal `json:"stop_loss_pct"`
	TakeProfitPct decimal.Decimal `json:"take_profit_pct"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	SlippageBps   int             `json:"slippage_bps"`

	State      State           `json:"state"`
	LastPrice  decimal.Decimal `json:"last_price"`
	LastPollAt time.Time       `json:"last_poll_at"`

	ExitReason    string     `json:"exit_reason,omitempty"`
	ExitConfirmed bool       `json:"exit_confirmed"`
	Forced        bool       `json:"forced"`
	OrderRef      string     `json:"order_ref,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Transition advances the position through the state machine. Returns
// a *ConsistencyError on edges the table does not allow, which is how
// double exits and duplicate opens surface.
func (p *Position) Transition(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.State
	next, ok := transitions[transition{from: p.State, event: event}]
	if !ok {
		return &ConsistencyError{
			PairAddress: p.PairAddress,
			Op:          string(event),
			Msg:         fmt.Sprintf("invalid transition: state=%s event=%s", p.State, event),
		}
	}

	now := time.Now()
	p.State = next
	p.UpdatedAt = now
	if next == StateClosed {
		p.ClosedAt = &now
	}

	log.Info().
		Str("position_id", p.ID).
		Str("pair", p.PairAddress).
		Str("prev_state", string(prev)).
		Str("event", string(event)).
		Str("new_state", string(next)).
		Msg("position state transition")

	return nil
}

// CurrentState returns the state. Thread-safe.
func (p *Position) CurrentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.State
}

// IsLive reports whether the position still needs monitoring.
func (p *Position) IsLive() bool {
	switch p.CurrentState() {
	case StateOpen, StateClosing:
		return true
	default:
		return false
	}
}

// ObservePrice records a price sample and returns the PnL percentage
// against the entry price.
func (p *Position) ObservePrice(price decimal.Decimal, at time.Time) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.LastPrice = price
	p.LastPollAt = at
	if !p.EntryPrice.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// ConsistencyError reports a violated position invariant: a duplicate
// live position, a double exit confirmation, or an edge outside the
// transition table. It is fatal to the pair's task, never to the
// engine.
type ConsistencyError struct {
	PairAddress string
	Op          string
	Msg         string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation on %s during %s: %s", e.PairAddress, e.Op, e.Msg)
}
