package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/market"
)

func tradeAt(pair string, age time.Duration) market.Trade {
	return market.Trade{
		PairAddress: pair,
		Maker:       "walletX",
		Side:        market.TradeBuy,
		AmountUSD:   100,
		At:          time.Now().Add(-age),
	}
}

func TestTradeWindowRoundTrip(t *testing.T) {
	w := NewTradeWindow(30*time.Minute, 500)

	w.Record(tradeAt("pairAAA", time.Minute))
	w.Record(tradeAt("pairAAA", 2*time.Minute))
	w.Record(tradeAt("pairBBB", time.Minute))

	trades, err := w.RecentTrades(context.Background(), "pairAAA")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	trades, err = w.RecentTrades(context.Background(), "pairZZZ")
	require.NoError(t, err)
	require.Empty(t, trades)

	require.Equal(t, 2, w.Stats().TrackedPairs)
	require.Equal(t, int64(3), w.Stats().Recorded)
}

func TestTradeWindowExcludesExpired(t *testing.T) {
	w := NewTradeWindow(10*time.Minute, 500)

	w.Record(tradeAt("pairAAA", time.Minute))
	w.Record(tradeAt("pairAAA", time.Hour))

	trades, err := w.RecentTrades(context.Background(), "pairAAA")
	require.NoError(t, err)
	require.Len(t, trades, 1)
}

func TestTradeWindowCapsPerPair(t *testing.T) {
	w := NewTradeWindow(time.Hour, 3)

	for n := 0; n < 5; n++ {
		trade := tradeAt("pairAAA", time.Duration(5-n)*time.Minute)
		trade.Maker = fmt.Sprintf("wallet-%d", n)
		w.Record(trade)
	}

	trades, err := w.RecentTrades(context.Background(), "pairAAA")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	// Oldest entries were evicted first.
	require.Equal(t, "wallet-2", trades[0].Maker)
	require.Equal(t, "wallet-4", trades[2].Maker)
}

func TestTradeWindowPrune(t *testing.T) {
	w := NewTradeWindow(10*time.Minute, 500)

	w.Record(tradeAt("pairAAA", time.Hour))
	w.Record(tradeAt("pairBBB", time.Minute))

	w.prune()

	require.Equal(t, 1, w.Stats().TrackedPairs)

	trades, err := w.RecentTrades(context.Background(), "pairBBB")
	require.NoError(t, err)
	require.Len(t, trades, 1)
}

func TestTradeWindowForget(t *testing.T) {
	w := NewTradeWindow(time.Hour, 500)

	w.Record(tradeAt("pairAAA", time.Minute))
	w.Forget("pairAAA")

	trades, err := w.RecentTrades(context.Background(), "pairAAA")
	require.NoError(t, err)
	require.Empty(t, trades)
}
