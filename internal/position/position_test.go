package position

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name  string
		from  State
		event Event
		want  State
		ok    bool
	}{
		{"accept starts evaluation", StateIdle, EventAccept, StateEvaluating, true},
		{"open from evaluating", StateEvaluating, EventOpen, StateOpen, true},
		{"reject closes evaluation", StateEvaluating, EventReject, StateClosed, true},
		{"exit trigger moves to closing", StateOpen, EventExitTrigger, StateClosing, true},
		{"confirm closes", StateClosing, EventExitConfirm, StateClosed, true},
		{"force closes", StateClosing, EventExitForce, StateClosed, true},

		{"open cannot close directly", StateOpen, EventExitConfirm, "", false},
		{"open cannot force close", StateOpen, EventExitForce, "", false},
		{"closed is terminal", StateClosed, EventExitTrigger, "", false},
		{"closing cannot re-trigger", StateClosing, EventExitTrigger, "", false},
		{"idle cannot open", StateIdle, EventOpen, "", false},
		{"evaluating cannot exit", StateEvaluating, EventExitTrigger, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := &Position{ID: "pos-1", PairAddress: "pairAAA", State: tc.from}
			err := pos.Transition(tc.event)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.want, pos.CurrentState())
				return
			}
			var cerr *ConsistencyError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.from, pos.CurrentState(), "state unchanged after rejected event")
		})
	}
}

func TestTransitionSetsClosedAt(t *testing.T) {
	pos := &Position{ID: "pos-1", PairAddress: "pairAAA", State: StateClosing}
	require.NoError(t, pos.Transition(EventExitConfirm))
	require.NotNil(t, pos.ClosedAt)
	assert.WithinDuration(t, time.Now(), *pos.ClosedAt, time.Second)
	assert.False(t, pos.IsLive())
}

func TestObservePrice(t *testing.T) {
	pos := &Position{
		ID:         "pos-1",
		EntryPrice: decimal.NewFromInt(100),
		State:      StateOpen,
	}

	pnl := pos.ObservePrice(decimal.NewFromInt(88), time.Now())
	assert.True(t, pnl.Equal(decimal.NewFromInt(-12)), "pnl = %s", pnl)
	assert.True(t, pos.LastPrice.Equal(decimal.NewFromInt(88)))
	assert.False(t, pos.LastPollAt.IsZero())
}

func testExitPosition() *Position {
	return &Position{
		ID:            "pos-1",
		PairAddress:   "pairAAA",
		EntryPrice:    decimal.NewFromInt(100),
		StopLossPct:   decimal.NewFromInt(10),
		TakeProfitPct: decimal.NewFromInt(25),
		State:         StateOpen,
	}
}

func TestEvaluateExitStopLoss(t *testing.T) {
	pos := testExitPosition()

	// Entry at 100 with a 10% stop: 95 holds, 88 triggers.
	d := EvaluateExit(pos, decimal.NewFromInt(95), false)
	assert.False(t, d.Triggered)

	d = EvaluateExit(pos, decimal.NewFromInt(88), false)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonStopLoss, d.Reason)
	assert.True(t, d.Threshold.Equal(decimal.NewFromInt(90)))
	assert.True(t, d.PnLPct.Equal(decimal.NewFromInt(-12)))
}

func TestEvaluateExitStopLossAtExactThreshold(t *testing.T) {
	pos := testExitPosition()
	d := EvaluateExit(pos, decimal.NewFromInt(90), false)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonStopLoss, d.Reason)
}

func TestEvaluateExitTakeProfit(t *testing.T) {
	pos := testExitPosition()

	d := EvaluateExit(pos, decimal.NewFromInt(124), false)
	assert.False(t, d.Triggered)

	d = EvaluateExit(pos, decimal.NewFromInt(125), false)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonTakeProfit, d.Reason)
	assert.True(t, d.Threshold.Equal(decimal.NewFromInt(125)))
	assert.True(t, d.PnLPct.Equal(decimal.NewFromInt(25)))
}

func TestEvaluateExitManualStop(t *testing.T) {
	pos := testExitPosition()

	d := EvaluateExit(pos, decimal.NewFromInt(100), false)
	assert.False(t, d.Triggered)

	d = EvaluateExit(pos, decimal.NewFromInt(100), true)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonManualStop, d.Reason)
}

func TestEvaluateExitProtectivePriority(t *testing.T) {
	pos := testExitPosition()

	// A manual stop arriving while the price breaches a protective
	// threshold is reported as the protective exit, not the manual one.
	d := EvaluateExit(pos, decimal.NewFromInt(88), true)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonStopLoss, d.Reason)

	d = EvaluateExit(pos, decimal.NewFromInt(130), true)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonTakeProfit, d.Reason)
}

func TestEvaluateExitIgnoresUnsetThresholds(t *testing.T) {
	pos := &Position{
		ID:          "pos-1",
		PairAddress: "pairAAA",
		EntryPrice:  decimal.NewFromInt(100),
		State:       StateOpen,
	}

	d := EvaluateExit(pos, decimal.NewFromInt(1), false)
	assert.False(t, d.Triggered, "no thresholds configured, nothing triggers")

	d = EvaluateExit(pos, decimal.NewFromInt(1), true)
	require.True(t, d.Triggered)
	assert.Equal(t, ReasonManualStop, d.Reason)
}
