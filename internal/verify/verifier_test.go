package verify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/storage/memory"
	"github.com/nexus-trading/warden/internal/verify"
)

// stubSafety scripts a safety provider: the first failN calls error,
// the rest return result.
type stubSafety struct {
	mu     sync.Mutex
	failN  int
	err    error
	result verify.Result
	calls  int
}

func (s *stubSafety) Check(ctx context.Context, token string) (verify.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failN > 0 {
		s.failN--
		return Result{}, s.err
	}
	return s.result, nil
}

func (s *stubSafety) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func verifyPair(addr string) market.Pair {
	return market.Pair{
		Chain:        "solana",
		Address:      addr,
		BaseToken:    market.Token{Address: "mint-" + addr, Symbol: "TEST"},
		PriceUSD:     decimal.NewFromInt(1),
		LiquidityUSD: 50000,
		Volume24h:    25000,
		ObservedAt:   time.Now(),
	}
}

func fastConfig() Config {
	return Config{ProviderTimeout: time.Second, RetryBackoff: time.Millisecond}
}

func TestVerifyPassesCleanResult(t *testing.T) {
	provider := &stubSafety{result: Result{Safe: true, Status: StatusGood, Score: 5, Source: "rugcheck"}}
	v := NewVerifier(fastConfig(), provider, nil)

	res := v.Verify(context.Background(), verifyPair("pairAAA"))

	assert.True(t, res.Safe)
	assert.Equal(t, StatusGood, res.Status)
	assert.Equal(t, 1, provider.callCount())

	stats := v.Stats()
	assert.Equal(t, int64(1), stats.Checks)
	assert.Equal(t, int64(0), stats.UnsafeResults)
	assert.Equal(t, int64(0), stats.ProviderErrors)
}

func TestVerifyRetriesOnceThenSucceeds(t *testing.T) {
	provider := &stubSafety{
		failN:  1,
		err:    errors.New("rugcheck 503"),
		result: Result{Safe: true, Status: StatusGood, Source: "rugcheck"},
	}
	v := NewVerifier(fastConfig(), provider, nil)

	res := v.Verify(context.Background(), verifyPair("pairAAA"))

	assert.True(t, res.Safe)
	assert.Equal(t, 2, provider.callCount(), "exactly one retry")
	assert.Equal(t, int64(0), v.Stats().ProviderErrors)
}

func TestVerifyFailsClosedAfterRetry(t *testing.T) {
	provider := &stubSafety{failN: 2, err: errors.New("rugcheck timeout")}
	v := NewVerifier(fastConfig(), provider, nil)

	res := v.Verify(context.Background(), verifyPair("pairAAA"))

	assert.False(t, res.Safe, "unverifiable token is unsafe")
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "verifier", res.Source)
	assert.Equal(t, 2, provider.callCount(), "one retry, never more")

	stats := v.Stats()
	assert.Equal(t, int64(1), stats.ProviderErrors)
	assert.Equal(t, int64(1), stats.UnsafeResults)
}

func TestVerifyCountsUnsafeResult(t *testing.T) {
	provider := &stubSafety{result: Result{
		Safe:   false,
		Status: StatusDanger,
		Risks:  []RiskItem{{Name: "mint authority enabled", Level: "danger"}},
		Source: "rugcheck",
	}}
	v := NewVerifier(fastConfig(), provider, nil)

	res := v.Verify(context.Background(), verifyPair("pairAAA"))

	assert.False(t, res.Safe)
	assert.Equal(t, StatusDanger, res.Status)
	assert.Equal(t, int64(1), v.Stats().UnsafeResults)
	assert.Equal(t, int64(0), v.Stats().ProviderErrors)
}

func TestVerifyBlacklistsBundledDeployer(t *testing.T) {
	deny := blacklist.New(memory.NewBlacklistStore())
	require.NoError(t, deny.Load(context.Background()))

	provider := &stubSafety{result: Result{
		Safe:          false,
		Status:        StatusDanger,
		Deployer:      "walletDEADBEEF",
		BundledSupply: true,
		TopHolderPct:  72.5,
		Source:        "rugcheck",
	}}
	v := NewVerifier(fastConfig(), provider, deny)

	v.Verify(context.Background(), verifyPair("pairAAA"))

	entry, found := deny.Lookup("walletDEADBEEF")
	require.True(t, found, "deployer appended to blacklist")
	assert.Equal(t, blacklist.KindDeployer, entry.Kind)
	assert.Contains(t, entry.Reason, "bundled supply")

	// A second token from the same wallet does not duplicate the entry.
	v.Verify(context.Background(), verifyPair("pairBBB"))
	assert.Equal(t, 1, deny.Size())
}

func TestVerifyNoAppendWithoutDeployer(t *testing.T) {
	deny := blacklist.New(memory.NewBlacklistStore())
	require.NoError(t, deny.Load(context.Background()))

	provider := &stubSafety{result: Result{
		Safe:          false,
		Status:        StatusDanger,
		BundledSupply: true,
		Source:        "rugcheck",
	}}
	v := NewVerifier(fastConfig(), provider, deny)

	v.Verify(context.Background(), verifyPair("pairAAA"))
	assert.Equal(t, 0, deny.Size(), "no deployer address, nothing to append")
}

func TestVerifyCancelledContext(t *testing.T) {
	provider := &stubSafety{failN: 2, err: errors.New("rugcheck 503")}
	v := NewVerifier(Config{ProviderTimeout: time.Second, RetryBackoff: time.Minute}, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := v.Verify(ctx, verifyPair("pairAAA"))

	assert.False(t, res.Safe)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, provider.callCount(), "retry abandoned on cancellation")
}
