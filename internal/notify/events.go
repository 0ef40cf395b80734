// Package notify publishes lifecycle events to operator-facing sinks.
// Delivery is fire-and-forget: a slow or broken sink never blocks the
// trading path, it only shows up in the drop and failure counters.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/position"
)

// EventType identifies what happened.
type EventType string

const (
	EventPairObserved      EventType = "pair_observed"
	EventTradeDenied       EventType = "trade_denied"
	EventPositionOpened    EventType = "position_opened"
	EventExitTriggered     EventType = "exit_triggered"
	EventPositionClosed    EventType = "position_closed"
	EventBlacklistAppended EventType = "blacklist_appended"
	EventCriticalAlert     EventType = "critical_alert"
)

// Severity levels for sinks that filter.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Event is the envelope every notification travels in.
type Event struct {
	ID       string    `json:"event_id"`
	Type     EventType `json:"type"`
	At       time.Time `json:"ts"`
	Producer string    `json:"producer"`
	TraceID  string    `json:"trace_id,omitempty"`
	Pair     string    `json:"pair,omitempty"`
	Severity string    `json:"severity"`
	Title    string    `json:"title"`
	Body     string    `json:"body,omitempty"`
}

func newEvent(typ EventType, severity, pair, title, body string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		At:       time.Now(),
		Producer: "warden",
		Pair:     pair,
		Severity: severity,
		Title:    title,
		Body:     body,
	}
}

// PairObserved reports a new pair entering the pipeline.
func PairObserved(pairAddress, symbol string) Event {
	return newEvent(EventPairObserved, SeverityInfo, pairAddress,
		fmt.Sprintf("observed %s", symbol), "")
}

// TradeDenied reports a pair that was evaluated and rejected.
func TradeDenied(pairAddress, symbol string, reasons []string) Event {
	return newEvent(EventTradeDenied, SeverityInfo, pairAddress,
		fmt.Sprintf("trade denied: %s", symbol),
		strings.Join(reasons, "; "))
}

// PositionOpened reports a freshly opened position.
func PositionOpened(pos *position.Position) Event {
	return newEvent(EventPositionOpened, SeverityInfo, pos.PairAddress,
		fmt.Sprintf("opened %s", pos.TokenName),
		fmt.Sprintf("entry %s USD, size %s USD, SL -%s%% TP +%s%%",
			pos.EntryPrice, pos.AmountUSD, pos.StopLossPct, pos.TakeProfitPct))
}

// ExitTriggered reports an exit condition firing, before the sell
// order settles.
func ExitTriggered(pos *position.Position, decision position.ExitDecision) Event {
	return newEvent(EventExitTriggered, SeverityWarning, pos.PairAddress,
		fmt.Sprintf("%s triggered for %s", decision.Reason, pos.TokenName),
		fmt.Sprintf("price %s, threshold %s, pnl %s%%",
			decision.Price, decision.Threshold, decision.PnLPct.StringFixed(2)))
}

// PositionClosed reports a settled close, confirmed or forced.
func PositionClosed(pos *position.Position) Event {
	severity := SeverityInfo
	title := fmt.Sprintf("closed %s (%s)", pos.TokenName, pos.ExitReason)
	if pos.Forced {
		severity = SeverityCritical
		title = fmt.Sprintf("force-closed %s (%s, unconfirmed)", pos.TokenName, pos.ExitReason)
	}

	pnl := decimal.Zero
	if pos.EntryPrice.IsPositive() {
		pnl = pos.LastPrice.Sub(pos.EntryPrice).Div(pos.EntryPrice).Mul(decimal.NewFromInt(100))
	}
	return newEvent(EventPositionClosed, severity, pos.PairAddress, title,
		fmt.Sprintf("exit %s USD, pnl %s%%", pos.LastPrice, pnl.StringFixed(2)))
}

// BlacklistAppended reports a new banned address.
func BlacklistAppended(e blacklist.Entry) Event {
	return newEvent(EventBlacklistAppended, SeverityWarning, "",
		fmt.Sprintf("blacklisted %s %s", e.Kind, e.Address),
		e.Reason)
}

// CriticalAlert reports a condition that needs an operator now.
func CriticalAlert(pairAddress, msg string) Event {
	return newEvent(EventCriticalAlert, SeverityCritical, pairAddress,
		"critical alert", msg)
}
