package intake

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/storage/memory"
)

// Well-known mainnet addresses: any base58 string decoding to 32 bytes
// passes validation, these are just convenient real ones.
const (
	pairAddr  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	tokenAddr = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func testPair() market.Pair {
	return market.Pair{
		Chain:        "solana",
		DexID:        "raydium",
		Address:      pairAddr,
		BaseToken:    market.Token{Address: tokenAddr, Symbol: "BONK"},
		QuoteToken:   market.Token{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL"},
		PriceUSD:     decimal.RequireFromString("0.000021"),
		LiquidityUSD: 80000,
		Volume24h:    40000,
		CreatedAt:    time.Now().Add(-48 * time.Hour),
		ObservedAt:   time.Now(),
	}
}

func testFilters() config.FiltersConfig {
	return config.FiltersConfig{
		MinLiquidityUSD: 10000,
		MinVolume24hUSD: 5000,
		MinAgeHours:     1,
	}
}

type capture struct {
	pairs []market.Pair
}

func (c *capture) onPair(_ context.Context, pair market.Pair, _ string) {
	c.pairs = append(c.pairs, pair)
}

type stubTracker struct {
	busy map[string]bool
}

func (t *stubTracker) InFlight(pairAddress string) bool { return t.busy[pairAddress] }

func newTestIntake(deny *blacklist.List, tracker Tracker, c *capture) *Intake {
	return New(config.DiscoveryConfig{SeenTTLMin: 60}, testFilters(), deny, tracker, c.onPair)
}

func TestSubmitAdmitsValidPair(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	res := in.Submit(context.Background(), testPair(), "poll")

	require.True(t, res.Accepted)
	require.Empty(t, res.Reason)
	require.Len(t, c.pairs, 1)
	require.Equal(t, pairAddr, c.pairs[0].Address)

	stats := in.Stats()
	require.Equal(t, int64(1), stats.Observed)
	require.Equal(t, int64(1), stats.Accepted)
	require.Equal(t, 1, stats.Tracked)
}

func TestSubmitDeduplicatesWithinTTL(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	first := in.Submit(context.Background(), testPair(), "poll")
	second := in.Submit(context.Background(), testPair(), "stream")

	require.True(t, first.Accepted)
	require.False(t, second.Accepted)
	require.Equal(t, ReasonDuplicate, second.Reason)
	require.Len(t, c.pairs, 1)
	require.Equal(t, int64(1), in.Stats().Duplicates)
}

func TestSubmitReadmitsAfterTTL(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	in.Submit(context.Background(), testPair(), "poll")

	in.mu.Lock()
	in.seen[pairAddr] = time.Now().Add(-61 * time.Minute)
	in.mu.Unlock()

	res := in.Submit(context.Background(), testPair(), "poll")

	require.True(t, res.Accepted)
	require.Len(t, c.pairs, 2)
	require.Equal(t, int64(0), in.Stats().Duplicates)
}

func TestSubmitRejectsInvalidAddress(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	empty := testPair()
	empty.Address = ""
	require.Equal(t, ReasonInvalidAddress, in.Submit(context.Background(), empty, "poll").Reason)

	evm := testPair()
	evm.Address = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"
	require.Equal(t, ReasonInvalidAddress, in.Submit(context.Background(), evm, "poll").Reason)

	require.Empty(t, c.pairs)
	require.Equal(t, int64(2), in.Stats().Rejected)
}

func TestSubmitSkipsBase58CheckOffSolana(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	bsc := testPair()
	bsc.Chain = "bsc"
	bsc.Address = "0x58f876857a02d6762e0101bb5c46a8c1ed44dc16"
	bsc.BaseToken.Address = "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c"

	res := in.Submit(context.Background(), bsc, "poll")

	require.True(t, res.Accepted)
	require.Len(t, c.pairs, 1)
}

func TestSubmitRejectsMissingPrice(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	noPrice := testPair()
	noPrice.PriceUSD = decimal.Zero

	require.Equal(t, ReasonNoPrice, in.Submit(context.Background(), noPrice, "poll").Reason)
	require.Empty(t, c.pairs)
}

func TestSubmitRejectsBlacklisted(t *testing.T) {
	deny := blacklist.New(memory.NewBlacklistStore())
	require.NoError(t, deny.Load(context.Background()))
	require.NoError(t, deny.Append(context.Background(), blacklist.Entry{
		Address: tokenAddr,
		Kind:    blacklist.KindToken,
		Reason:  "rug pull",
	}))

	c := &capture{}
	in := newTestIntake(deny, nil, c)

	res := in.Submit(context.Background(), testPair(), "poll")

	require.False(t, res.Accepted)
	require.Equal(t, ReasonBlacklistedToken, res.Reason)
	require.Empty(t, c.pairs)
	require.Equal(t, int64(1), in.Stats().Blacklisted)

	// Blacklisted pairs are not marked seen; removal from the list
	// would let the next observation through.
	require.Equal(t, 0, in.Stats().Tracked)
}

func TestSubmitRejectsInFlightPair(t *testing.T) {
	c := &capture{}
	tracker := &stubTracker{busy: map[string]bool{pairAddr: true}}
	in := newTestIntake(nil, tracker, c)

	res := in.Submit(context.Background(), testPair(), "poll")

	require.Equal(t, ReasonInFlight, res.Reason)
	require.Empty(t, c.pairs)
	require.Equal(t, int64(1), in.Stats().InFlight)
}

func TestSubmitAppliesStructuralFilters(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*market.Pair)
		reason string
	}{
		{"low liquidity", func(p *market.Pair) { p.LiquidityUSD = 500 }, ReasonLowLiquidity},
		{"low volume", func(p *market.Pair) { p.Volume24h = 100 }, ReasonLowVolume},
		{"too young", func(p *market.Pair) { p.CreatedAt = time.Now().Add(-10 * time.Minute) }, ReasonTooYoung},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &capture{}
			in := newTestIntake(nil, nil, c)

			pair := testPair()
			tc.mutate(&pair)

			res := in.Submit(context.Background(), pair, "poll")

			require.False(t, res.Accepted)
			require.Equal(t, tc.reason, res.Reason)
			require.Empty(t, c.pairs)
		})
	}
}

func TestSubmitAllowsUnknownAge(t *testing.T) {
	c := &capture{}
	in := newTestIntake(nil, nil, c)

	pair := testPair()
	pair.CreatedAt = time.Time{}

	require.True(t, in.Submit(context.Background(), pair, "poll").Accepted)
}

func TestSeenSetEvictsOldestAtCapacity(t *testing.T) {
	in := newTestIntake(nil, nil, &capture{})

	now := time.Now()
	in.mu.Lock()
	for n := 0; n < maxTracked; n++ {
		in.seen[fmt.Sprintf("synthetic-%d", n)] = now.Add(-time.Duration(n) * time.Second)
	}
	in.mu.Unlock()

	require.True(t, in.admit("fresh"))

	in.mu.Lock()
	defer in.mu.Unlock()
	require.Len(t, in.seen, maxTracked)
	_, oldestKept := in.seen[fmt.Sprintf("synthetic-%d", maxTracked-1)]
	require.False(t, oldestKept)
	_, freshKept := in.seen["fresh"]
	require.True(t, freshKept)
}
