package pocketuniverse

import (
	"bytes"
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
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/verify"
)

const (
	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// Client queries the Pocket Universe fake-volume checker. It implements
// verify.VolumeProvider: volume is legitimate when the reported
// real-volume ratio meets the configured minimum.
type Client struct {
	baseURL    string
	apiKey     string
	minRatio   float64
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// New creates a Pocket Universe client.
func New(cfg config.ProviderConfig, minRatio float64) *Client {
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		minRatio:   minRatio,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:     log.With().Str("component", "pocketuniverse").Logger(),
	}
}

type checkRequest struct {
	TokenAddress string `json:"token_address"`
	PairAddress  string `json:"pair_address,omitempty"`
}

type checkResponse struct {
	Success         bool    `json:"success"`
	RealVolumeRatio float64 `json:"real_volume_ratio"`
	Message         string  `json:"message,omitempty"`
}

// Analyze implements verify.VolumeProvider.
func (c *Client) Analyze(ctx context.Context, pair market.Pair) (verify.VolumeVerdict, error) {
	reqBody := checkRequest{
		TokenAddress: pair.BaseToken.Address,
		PairAddress:  pair.Address,
	}

	var resp checkResponse
	if err := c.postJSON(ctx, c.baseURL+"/check_volume", reqBody, &resp); err != nil {
		return verify.VolumeVerdict{}, err
	}
	if !resp.Success {
		return verify.VolumeVerdict{}, &verify.ProviderError{Provider: "pocket_universe",
			Kind: verify.KindBadResponse, Err: fmt.Errorf("provider reported failure: %s", resp.Message)}
	}

	verdict := verify.VolumeVerdict{
		Legitimate: resp.RealVolumeRatio >= c.minRatio,
		Source:     "pocket_universe",
		Score:      resp.RealVolumeRatio,
		CheckedAt:  time.Now(),
	}
	if !verdict.Legitimate {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("real volume ratio %.2f below %.2f", resp.RealVolumeRatio, c.minRatio))
	}
	return verdict, nil
}

// postJSON performs a rate-limited POST with retry.
func (c *Client) postJSON(ctx context.Context, u string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pocketuniverse: rate limiter: %w", err)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("pocketuniverse: marshal request: %w", err)
	}

	var (
		lastErr error
		kind    = verify.KindUnavailable
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseRetryWait * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("pocketuniverse: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http error: %w", err)
			kind = verify.KindUnavailable
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				kind = verify.KindTimeout
			}
			c.errorCount.Add(1)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			kind = verify.KindBadResponse
			c.errorCount.Add(1)
			continue
		}

		c.requestCount.Add(1)

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			kind = verify.KindRateLimited
			c.errorCount.Add(1)
			select {
			case <-time.After(time.Duration(2<<uint(attempt)) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
			kind = verify.KindUnavailable
			c.errorCount.Add(1)
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			kind = verify.KindBadResponse
			c.errorCount.Add(1)
			continue
		}

		return nil
	}

	return &verify.ProviderError{Provider: "pocket_universe", Kind: kind,
		Err: fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)}
}

// Stats is a snapshot of client counters.
type Stats struct {
	RequestCount int64 `json:"request_count"`
	ErrorCount   int64 `json:"error_count"`
}

// Stats returns current counters.
func (c *Client) Stats() Stats {
	return Stats{
		RequestCount: c.requestCount.Load(),
		ErrorCount:   c.errorCount.Load(),
	}
}
