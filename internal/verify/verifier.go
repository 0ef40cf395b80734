package verify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/market"
)

// Config holds verification cadences shared by the safety and volume
// orchestrators.
type Config struct {
	ProviderTimeout time.Duration // per provider attempt
	RetryBackoff    time.Duration // pause before the single retry
}

func (c *Config) applyDefaults() {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 10 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// Verifier wraps a SafetyProvider with the fail-closed policy: one
// retry on provider error, then an unsafe ERROR result. A bundled
// supply finding appends the deployer to the blacklist as a side
// effect, so the wallet's next token is dead on arrival.
type Verifier struct {
	cfg      Config
	provider SafetyProvider
	deny     *blacklist.List
	logger   zerolog.Logger

	checks         atomic.Int64
	unsafeResults  atomic.Int64
	providerErrors atomic.Int64
}

// NewVerifier creates a verifier. deny may be nil to disable the
// deployer auto-append.
func NewVerifier(cfg Config, provider SafetyProvider, deny *blacklist.List) *Verifier {
	cfg.applyDefaults()
	return &Verifier{
		cfg:      cfg,
		provider: provider,
		deny:     deny,
		logger:   log.With().Str("component", "verify").Logger(),
	}
}

// Verify returns the safety verdict for a pair's base token. It never
// returns an error: a provider that fails twice produces an unsafe
// result and the caller treats the pair as rejected.
func (v *Verifier) Verify(ctx context.Context, pair market.Pair) Result {
	v.checks.Add(1)
	token := pair.BaseToken.Address

	var (
		result  Result
		lastErr error
	)
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(v.cfg.RetryBackoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}

		actx, cancel := context.WithTimeout(ctx, v.cfg.ProviderTimeout)
		result, lastErr = v.provider.Check(actx, token)
		cancel()
		if lastErr == nil {
			break
		}
		v.logger.Warn().Err(lastErr).
			Str("token", token).
			Int("attempt", attempt+1).
			Msg("safety provider error")
	}

	if lastErr != nil {
		v.providerErrors.Add(1)
		v.unsafeResults.Add(1)
		v.logger.Warn().Err(lastErr).
			Str("pair", pair.Address).
			Str("token", token).
			Str("kind", string(errorKind(lastErr))).
			Msg("safety check failed closed")
		return Result{
			Safe:      false,
			Status:    StatusError,
			Source:    "verifier",
			CheckedAt: time.Now(),
		}
	}

	if result.BundledSupply && result.Deployer != "" && v.deny != nil {
		entry := blacklist.Entry{
			Address: result.Deployer,
			Kind:    blacklist.KindDeployer,
			Reason:  fmt.Sprintf("bundled supply on token %s", token),
		}
		if err := v.deny.Append(ctx, entry); err != nil {
			v.logger.Error().Err(err).
				Str("deployer", result.Deployer).
				Msg("deployer blacklist append failed")
		} else {
			v.logger.Warn().
				Str("deployer", result.Deployer).
				Str("token", token).
				Float64("top_holder_pct", result.TopHolderPct).
				Msg("deployer blacklisted for bundled supply")
		}
	}

	if !result.Safe {
		v.unsafeResults.Add(1)
	}
	return result
}

// VerifierStats is a snapshot of verifier counters.
type VerifierStats struct {
	Checks         int64 `json:"checks"`
	UnsafeResults  int64 `json:"unsafe_results"`
	ProviderErrors int64 `json:"provider_errors"`
}

// Stats returns current counters.
func (v *Verifier) Stats() VerifierStats {
	return VerifierStats{
		Checks:         v.checks.Load(),
		UnsafeResults:  v.unsafeResults.Load(),
		ProviderErrors: v.providerErrors.Load(),
	}
}
