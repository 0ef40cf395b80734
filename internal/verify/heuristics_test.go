package verify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
)

type stubTrades struct {
	trades []market.Trade
	err    error
}

func (s *stubTrades) RecentTrades(ctx context.Context, pairAddress string) ([]market.Trade, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trades, nil
}

func heurConfig() config.HeuristicsConfig {
	return config.HeuristicsConfig{
		MinUniqueTraders:   5,
		MaxWashTradePct:    20,
		MaxSelfTrades:      2,
		MinTradeGapS:       10,
		MaxRepeatedAmounts: 3,
	}
}

// organicTrades builds n one-sided trades from distinct makers with
// varied sizes and comfortable spacing.
func organicTrades(n int, gap time.Duration) []market.Trade {
	base := time.Now().Add(-time.Hour)
	trades := make([]market.Trade, 0, n)
	for i := 0; i < n; i++ {
		side := market.TradeBuy
		if i%2 == 1 {
			side = market.TradeSell
		}
		trades = append(trades, market.Trade{
			PairAddress: "pairAAA",
			Maker:       fmt.Sprintf("wallet-%d", i),
			Side:        side,
			AmountUSD:   100 + float64(i)*17,
			At:          base.Add(time.Duration(i) * gap),
		})
	}
	return trades
}

func TestHeuristicsQuietPairPasses(t *testing.T) {
	h := NewHeuristics(heurConfig(), &stubTrades{})

	pair := verifyPair("pairAAA")
	pair.Volume24h = 0

	verdict, err := h.Analyze(context.Background(), pair)
	require.NoError(t, err)

	assert.True(t, verdict.Legitimate, "no trades and no reported volume is just a quiet pair")
	assert.Equal(t, 1.0, verdict.Score)
}

func TestHeuristicsFlagsReportedVolumeWithoutTrades(t *testing.T) {
	h := NewHeuristics(heurConfig(), &stubTrades{})

	pair := verifyPair("pairAAA")
	pair.Volume24h = 80000

	verdict, err := h.Analyze(context.Background(), pair)
	require.NoError(t, err)

	assert.False(t, verdict.Legitimate)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "no observed trades")
}

func TestHeuristicsOrganicFlowPasses(t *testing.T) {
	h := NewHeuristics(heurConfig(), &stubTrades{trades: organicTrades(8, 30*time.Second)})

	verdict, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	require.NoError(t, err)

	assert.True(t, verdict.Legitimate, "reasons: %v", verdict.Reasons)
	assert.Equal(t, 1.0, verdict.Score)
	assert.Equal(t, "heuristics", verdict.Source)
}

func TestHeuristicsFlagsWashTrading(t *testing.T) {
	trades := organicTrades(6, 30*time.Second)
	base := trades[len(trades)-1].At
	// One wallet churning both sides dominates the turnover.
	trades = append(trades,
		market.Trade{PairAddress: "pairAAA", Maker: "washer", Side: market.TradeBuy, AmountUSD: 5000, At: base.Add(30 * time.Second)},
		market.Trade{PairAddress: "pairAAA", Maker: "washer", Side: market.TradeSell, AmountUSD: 5100, At: base.Add(60 * time.Second)},
	)
	h := NewHeuristics(heurConfig(), &stubTrades{trades: trades})

	verdict, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	require.NoError(t, err)

	assert.False(t, verdict.Legitimate)
	require.Len(t, verdict.Reasons, 1, "only the wash check fails: %v", verdict.Reasons)
	assert.Contains(t, verdict.Reasons[0], "wash trade volume")
	assert.InDelta(t, 0.8, verdict.Score, 0.001)
}

func TestHeuristicsFlagsSelfTrading(t *testing.T) {
	trades := organicTrades(6, 30*time.Second)
	base := trades[len(trades)-1].At
	// Small round trips stay under the wash-volume share but repeat.
	for i := 0; i < 3; i++ {
		trades = append(trades,
			market.Trade{PairAddress: "pairAAA", Maker: "looper", Side: market.TradeBuy, AmountUSD: 5 + float64(i), At: base.Add(time.Duration(2*i+1) * 30 * time.Second)},
			market.Trade{PairAddress: "pairAAA", Maker: "looper", Side: market.TradeSell, AmountUSD: 8 + float64(i), At: base.Add(time.Duration(2*i+2) * 30 * time.Second)},
		)
	}
	h := NewHeuristics(heurConfig(), &stubTrades{trades: trades})

	verdict, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	require.NoError(t, err)

	assert.False(t, verdict.Legitimate)
	assert.Contains(t, verdict.Reasons, "self trades 3 above 2")
}

func TestHeuristicsFlagsMachineGunTrades(t *testing.T) {
	h := NewHeuristics(heurConfig(), &stubTrades{trades: organicTrades(8, time.Second)})

	verdict, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	require.NoError(t, err)

	assert.False(t, verdict.Legitimate)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "average trade gap")
}

func TestHeuristicsFlagsRepeatedAmounts(t *testing.T) {
	trades := organicTrades(8, 30*time.Second)
	for i := range trades {
		trades[i].AmountUSD = 25.00
	}
	h := NewHeuristics(heurConfig(), &stubTrades{trades: trades})

	verdict, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	require.NoError(t, err)

	assert.False(t, verdict.Legitimate)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "identical trade amount repeated 8 times")
}

func TestHeuristicsFlagsThinMakerSet(t *testing.T) {
	trades := []market.Trade{
		{PairAddress: "pairAAA", Maker: "w1", Side: market.TradeBuy, AmountUSD: 120, At: time.Now().Add(-5 * time.Minute)},
		{PairAddress: "pairAAA", Maker: "w2", Side: market.TradeBuy, AmountUSD: 340, At: time.Now().Add(-4 * time.Minute)},
	}
	h := NewHeuristics(heurConfig(), &stubTrades{trades: trades})

	verdict, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	require.NoError(t, err)

	assert.False(t, verdict.Legitimate)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "unique traders 2 below 5")
}

func TestHeuristicsTradeSourceError(t *testing.T) {
	h := NewHeuristics(heurConfig(), &stubTrades{err: errors.New("window closed")})

	_, err := h.Analyze(context.Background(), verifyPair("pairAAA"))
	assert.Error(t, err, "source errors surface so the analyzer can fail closed")
}
