package rugcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/verify"
)

const testMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(
		config.ProviderConfig{BaseURL: srv.URL, APIKey: "secret", TimeoutS: 2, RatePerSec: 1000, Burst: 1000},
		config.SupplyConfig{MaxTopHolderPct: 30, BundleDeltaPct: 1, MinCirculatingRatio: 0.1},
	)
	c.retryWait = time.Millisecond
	c.cooldown = 100 * time.Millisecond
	return c
}

func TestCheckCleanReport(t *testing.T) {
	body := `{
	  "mint": "` + testMint + `",
	  "creator": "creator111",
	  "token": {"supply": 1000000000, "circulatingSupply": 920000000, "decimals": 5},
	  "score": 120,
	  "risks": [],
	  "topHolders": [{"address": "h1", "pct": 8.2}, {"address": "h2", "pct": 4.1}],
	  "totalHolders": 5200
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/"+testMint+"/report", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.Check(context.Background(), testMint)
	require.NoError(t, err)

	assert.True(t, res.Safe)
	assert.Equal(t, verify.StatusGood, res.Status)
	assert.Equal(t, 120, res.Score)
	assert.Equal(t, "creator111", res.Deployer)
	assert.False(t, res.BundledSupply)
	assert.InDelta(t, 8.2, res.TopHolderPct, 0.0001)
	assert.Equal(t, "rugcheck", res.Source)
	assert.WithinDuration(t, time.Now(), res.CheckedAt, time.Minute)
}

func TestCheckBundledSupplyOverridesCleanReport(t *testing.T) {
	body := `{
	  "mint": "` + testMint + `",
	  "creator": "creator111",
	  "score": 80,
	  "risks": [],
	  "topHolders": [{"address": "h1", "pct": 25.0}, {"address": "h2", "pct": 24.6}]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.Check(context.Background(), testMint)
	require.NoError(t, err)

	assert.False(t, res.Safe, "bundled supply vetoes a clean report")
	assert.Equal(t, verify.StatusDanger, res.Status)
	assert.True(t, res.BundledSupply)
	require.Len(t, res.Risks, 1)
	assert.Equal(t, "bundled_supply", res.Risks[0].Name)
	assert.Equal(t, "danger", res.Risks[0].Level)
	assert.Equal(t, int64(1), c.Stats().BundledTokens)
}

func TestCheckUnknownTokenFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.Check(context.Background(), testMint)
	require.NoError(t, err, "an unknown token is a verdict, not a provider failure")

	assert.False(t, res.Safe)
	assert.Equal(t, verify.StatusError, res.Status)
	assert.Equal(t, "rugcheck", res.Source)
}

func TestCheckExhaustsRetriesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Check(context.Background(), testMint)
	require.ErrorContains(t, err, "failed after 3 attempts")
	assert.Equal(t, int64(3), c.Stats().ErrorCount)

	var perr *verify.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "rugcheck", perr.Provider)
	assert.Equal(t, verify.KindUnavailable, perr.Kind)
}
