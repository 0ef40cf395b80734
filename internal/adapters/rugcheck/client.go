package rugcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/verify"
)

const (
	maxRetries              = 2
	baseRetryWait           = 500 * time.Millisecond
	circuitBreakerThreshold = 10
	circuitBreakerCooldown  = 30 * time.Second
)

// Client queries the RugCheck token safety oracle. It implements
// verify.SafetyProvider: a token is safe only when the report status
// comes back GOOD and the holder distribution shows no bundling.
type Client struct {
	baseURL    string
	apiKey     string
	supply     config.SupplyConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	retryWait  time.Duration
	cooldown   time.Duration

	consecutiveErrors atomic.Int64
	circuitOpen       atomic.Bool

	requestCount  atomic.Int64
	errorCount    atomic.Int64
	bundledTokens atomic.Int64
}

// New creates a RugCheck client. supply controls the bundled-supply
// detection thresholds.
func New(cfg config.ProviderConfig, supply config.SupplyConfig) *Client {
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		supply:     supply,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:     log.With().Str("component", "rugcheck").Logger(),
		retryWait:  baseRetryWait,
		cooldown:   circuitBreakerCooldown,
	}
}

// Check implements verify.SafetyProvider. An unknown token yields an
// unsafe ERROR result without an error: retrying a 404 buys nothing.
func (c *Client) Check(ctx context.Context, tokenAddress string) (verify.Result, error) {
	u := fmt.Sprintf("%s/tokens/%s/report", c.baseURL, tokenAddress)

	var report reportJSON
	status, err := c.getJSON(ctx, u, &report)
	if err != nil {
		return verify.Result{}, err
	}
	if status == http.StatusNotFound {
		c.logger.Warn().Str("token", tokenAddress).Msg("token unknown to oracle")
		return verify.Result{
			Safe:      false,
			Status:    verify.StatusError,
			Source:    "rugcheck",
			CheckedAt: time.Now(),
		}, nil
	}

	result := report.toResult()

	bundled, topPct := c.detectBundledSupply(report)
	result.BundledSupply = bundled
	result.TopHolderPct = topPct
	if bundled {
		c.bundledTokens.Add(1)
		result.Safe = false
		if result.Status == verify.StatusGood {
			result.Status = verify.StatusDanger
		}
		result.Risks = append(result.Risks, verify.RiskItem{
			Name:        "bundled_supply",
			Level:       "danger",
			Description: fmt.Sprintf("holder distribution indicates bundled supply (top holder %.1f%%)", topPct),
		})
	}

	return result, nil
}

// detectBundledSupply flags coordinated holder patterns: a single
// dominant wallet, the two largest wallets holding near-identical
// stakes, or almost nothing actually circulating.
func (c *Client) detectBundledSupply(report reportJSON) (bool, float64) {
	holders := report.TopHolders
	if len(holders) == 0 {
		return false, 0
	}

	top := holders[0].Pct
	if top > c.supply.MaxTopHolderPct {
		return true, top
	}

	if len(holders) >= 2 {
		delta := holders[0].Pct - holders[1].Pct
		if delta < 0 {
			delta = -delta
		}
		if delta <= c.supply.BundleDeltaPct && holders[0].Pct+holders[1].Pct > c.supply.MaxTopHolderPct {
			return true, top
		}
	}

	if report.Token.Supply > 0 && report.Token.Circulating > 0 {
		if report.Token.Circulating/report.Token.Supply < c.supply.MinCirculatingRatio {
			return true, top
		}
	}

	return false, top
}

// getJSON performs a rate-limited GET with retry. The HTTP status is
// returned so callers can special-case 404.
func (c *Client) getJSON(ctx context.Context, u string, out any) (int, error) {
	if c.circuitOpen.Load() {
		return 0, &verify.ProviderError{Provider: "rugcheck", Kind: verify.KindUnavailable,
			Err: errors.New("circuit breaker open")}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rugcheck: rate limiter: %w", err)
	}

	var (
		lastErr error
		kind    = verify.KindUnavailable
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryWait * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return 0, fmt.Errorf("rugcheck: create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-KEY", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http error: %w", err)
			kind = verify.KindUnavailable
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				kind = verify.KindTimeout
			}
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			kind = verify.KindBadResponse
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		c.requestCount.Add(1)

		switch {
		case resp.StatusCode == http.StatusNotFound:
			c.resetErrors()
			return http.StatusNotFound, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			kind = verify.KindRateLimited
			c.errorCount.Add(1)
			select {
			case <-time.After(c.retryWait * time.Duration(4<<uint(attempt))):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
			continue
		case resp.StatusCode != http.StatusOK:
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
			kind = verify.KindUnavailable
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("decode report: %w", err)
			kind = verify.KindBadResponse
			c.errorCount.Add(1)
			c.recordError()
			continue
		}

		c.resetErrors()
		return http.StatusOK, nil
	}

	return 0, &verify.ProviderError{Provider: "rugcheck", Kind: kind,
		Err: fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)}
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
	BundledTokens int64 `json:"bundled_tokens"`
	CircuitOpen   bool  `json:"circuit_open"`
}

// Stats returns current counters.
func (c *Client) Stats() Stats {
	return Stats{
		RequestCount:  c.requestCount.Load(),
		ErrorCount:    c.errorCount.Load(),
		BundledTokens: c.bundledTokens.Load(),
		CircuitOpen:   c.circuitOpen.Load(),
	}
}
