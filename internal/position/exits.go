package position

import (
	"github.com/shopspring/decimal"
)

// ExitReason identifies why a position is being closed.
type ExitReason string

const (
	ReasonStopLoss   ExitReason = "STOP_LOSS"
	ReasonTakeProfit ExitReason = "TAKE_PROFIT"
	ReasonManualStop ExitReason = "MANUAL_STOP"
)

// ExitDecision is the result of evaluating exit conditions against a
// price sample.
type ExitDecision struct {
	Triggered bool            `json:"triggered"`
	Reason    ExitReason      `json:"reason,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Threshold decimal.Decimal `json:"threshold"`
	PnLPct    decimal.Decimal `json:"pnl_pct"`
}

var hundred = decimal.NewFromInt(100)

// EvaluateExit checks exit conditions in strict priority order:
// stop-loss, then take-profit, then manual stop. When a price sample
// satisfies both protective conditions at once the stop-loss wins, so
// a forced liquidation is always reported as the protective exit.
func EvaluateExit(pos *Position, price decimal.Decimal, manualStop bool) ExitDecision {
	pos.mu.Lock()
	entry := pos.EntryPrice
	slPct := pos.StopLossPct
	tpPct := pos.TakeProfitPct
	pos.mu.Unlock()

	decision := ExitDecision{Price: price}
	if entry.IsPositive() {
		decision.PnLPct = price.Sub(entry).Div(entry).Mul(hundred)
	}

	// Priority 1: stop-loss.
	if slPct.IsPositive() && entry.IsPositive() {
		slPrice := entry.Mul(hundred.Sub(slPct).Div(hundred))
		if price.LessThanOrEqual(slPrice) {
			decision.Triggered = true
			decision.Reason = ReasonStopLoss
			decision.Threshold = slPrice
			return decision
		}
	}

	// Priority 2: take-profit.
	if tpPct.IsPositive() && entry.IsPositive() {
		tpPrice := entry.Mul(hundred.Add(tpPct).Div(hundred))
		if price.GreaterThanOrEqual(tpPrice) {
			decision.Triggered = true
			decision.Reason = ReasonTakeProfit
			decision.Threshold = tpPrice
			return decision
		}
	}

	// Priority 3: operator stop request.
	if manualStop {
		decision.Triggered = true
		decision.Reason = ReasonManualStop
	}

	return decision
}
