package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
)

type stubSource struct {
	byQuery map[string][]market.Pair
	err     error
}

func (s *stubSource) Search(_ context.Context, query string) ([]market.Pair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byQuery[query], nil
}

func solPair(address string) market.Pair {
	return market.Pair{
		Chain:    "solana",
		Address:  address,
		PriceUSD: decimal.NewFromInt(1),
	}
}

func TestPollerCycleForwardsPairs(t *testing.T) {
	source := &stubSource{byQuery: map[string][]market.Pair{
		"raydium": {solPair("pair1"), solPair("pair2")},
		"pumpfun": {solPair("pair3")},
	}}

	var got []string
	p := NewPoller(config.DiscoveryConfig{
		Queries:          []string{"raydium", "pumpfun"},
		MaxPairsPerCycle: 50,
		PollIntervalS:    30,
	}, "solana", source, func(_ context.Context, pair market.Pair, src string) {
		require.Equal(t, "poll", src)
		got = append(got, pair.Address)
	})

	p.cycle(context.Background())

	require.Equal(t, []string{"pair1", "pair2", "pair3"}, got)
	require.Equal(t, int64(3), p.Stats().Fetched)
	require.Equal(t, int64(1), p.Stats().Cycles)
}

func TestPollerCapsPairsPerCycle(t *testing.T) {
	source := &stubSource{byQuery: map[string][]market.Pair{
		"raydium": {solPair("pair1"), solPair("pair2"), solPair("pair3")},
	}}

	var got int
	p := NewPoller(config.DiscoveryConfig{
		Queries:          []string{"raydium"},
		MaxPairsPerCycle: 2,
		PollIntervalS:    30,
	}, "solana", source, func(context.Context, market.Pair, string) { got++ })

	p.cycle(context.Background())

	require.Equal(t, 2, got)
}

func TestPollerFiltersForeignChains(t *testing.T) {
	bsc := solPair("pair9")
	bsc.Chain = "bsc"
	source := &stubSource{byQuery: map[string][]market.Pair{
		"raydium": {bsc, solPair("pair1")},
	}}

	var got []string
	p := NewPoller(config.DiscoveryConfig{
		Queries:          []string{"raydium"},
		MaxPairsPerCycle: 10,
		PollIntervalS:    30,
	}, "solana", source, func(_ context.Context, pair market.Pair, _ string) {
		got = append(got, pair.Address)
	})

	p.cycle(context.Background())

	require.Equal(t, []string{"pair1"}, got)
}

func TestPollerCountsFetchErrors(t *testing.T) {
	source := &stubSource{err: errors.New("upstream down")}

	p := NewPoller(config.DiscoveryConfig{
		Queries:          []string{"raydium", "pumpfun"},
		MaxPairsPerCycle: 10,
		PollIntervalS:    30,
	}, "solana", source, func(context.Context, market.Pair, string) {
		t.Fatal("no pairs expected")
	})

	p.cycle(context.Background())

	require.Equal(t, int64(2), p.Stats().FetchErrors)
}
