package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/storage"
)

const (
	maxRetries              = 3
	baseRetryWait           = 500 * time.Millisecond
	circuitBreakerThreshold = 10
	circuitBreakerCooldown  = 30 * time.Second
)

// Client is the DexScreener market-data client with rate limiting,
// retry and a circuit breaker. All pair discovery and price polling
// goes through it.
type Client struct {
	baseURL    string
	chain      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	retryWait  time.Duration
	cooldown   time.Duration

	consecutiveErrors atomic.Int64
	circuitOpen       atomic.Bool

	requestCount  atomic.Int64
	errorCount    atomic.Int64
	lastRequestAt atomic.Int64
}

// New creates a DexScreener client for the given chain.
func New(cfg config.ProviderConfig, chain string) *Client {
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		chain:      chain,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:     log.With().Str("component", "dexscreener").Logger(),
		retryWait:  baseRetryWait,
		cooldown:   circuitBreakerCooldown,
	}
}

// Search returns pairs matching a DexScreener search query.
func (c *Client) Search(ctx context.Context, query string) ([]market.Pair, error) {
	u := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(query))

	var resp searchResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	pairs := make([]market.Pair, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		pairs = append(pairs, p.toPair())
	}
	return pairs, nil
}

// Pair fetches a single pair by address on the client's chain. Returns
// storage.ErrNotFound when DexScreener does not know the pair.
func (c *Client) Pair(ctx context.Context, pairAddress string) (market.Pair, error) {
	u := fmt.Sprintf("%s/pairs/%s/%s", c.baseURL, c.chain, pairAddress)

	var resp pairsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return market.Pair{}, err
	}

	if resp.Pair != nil {
		return resp.Pair.toPair(), nil
	}
	if len(resp.Pairs) > 0 {
		return resp.Pairs[0].toPair(), nil
	}
	return market.Pair{}, fmt.Errorf("pair %s on %s: %w", pairAddress, c.chain, storage.ErrNotFound)
}

// TokenPairs returns all pairs trading a token on the client's chain.
func (c *Client) TokenPairs(ctx context.Context, tokenAddress string) ([]market.Pair, error) {
	u := fmt.Sprintf("%s/tokens/%s", c.baseURL, tokenAddress)

	var resp pairsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	pairs := make([]market.Pair, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		if p.ChainID == c.chain {
			pairs = append(pairs, p.toPair())
		}
	}
	return pairs, nil
}

// Price returns the current USD price for a pair.
func (c *Client) Price(ctx context.Context, pairAddress string) (decimal.Decimal, error) {
	pair, err := c.Pair(ctx, pairAddress)
	if err != nil {
		return decimal.Zero, err
	}
	if !pair.PriceUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("pair %s: no USD price", pairAddress)
	}
	return pair.PriceUSD, nil
}

// getJSON performs a rate-limited GET with retry and decodes the body.
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	if c.circuitOpen.Load() {
		return fmt.Errorf("dexscreener: circuit breaker open")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("dexscreener: rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryWait * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("dexscreener: create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("dexscreener: http error: %w", err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("dexscreener: read response: %w", err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		c.requestCount.Add(1)
		c.lastRequestAt.Store(time.Now().UnixMilli())

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("dexscreener: rate limited (429)")
			c.errorCount.Add(1)
			// Longer backoff on 429, not counted toward the breaker.
			select {
			case <-time.After(c.retryWait * time.Duration(4<<uint(attempt))):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("dexscreener: HTTP %d: %s", resp.StatusCode, string(body))
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("dexscreener: decode response: %w", err)
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		c.resetErrors()
		return nil
	}

	return fmt.Errorf("dexscreener: failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) recordError() {
	count := c.consecutiveErrors.Add(1)
	if count >= circuitBreakerThreshold {
		if c.circuitOpen.CompareAndSwap(false, true) {
			c.logger.Error().Int64("errors", count).Msg("circuit breaker open")
			go func() {
				time.Sleep(c.cooldown)
				c.circuitOpen.Store(false)
				c.consecutiveErrors.Store(0)
				c.logger.Info().Msg("circuit breaker reset")
			}()
		}
	}
}

func (c *Client) resetErrors() {
	c.consecutiveErrors.Store(0)
}

// Stats is a snapshot of client counters.
type Stats struct {
	RequestCount  int64 `json:"request_count"`
	ErrorCount    int64 `json:"error_count"`
	LastRequestAt int64 `json:"last_request_at"`
	CircuitOpen   bool  `json:"circuit_open"`
}

// Stats returns current counters.
func (c *Client) Stats() Stats {
	return Stats{
		RequestCount:  c.requestCount.Load(),
		ErrorCount:    c.errorCount.Load(),
		LastRequestAt: c.lastRequestAt.Load(),
		CircuitOpen:   c.circuitOpen.Load(),
	}
}
