package verify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/market"
)

// VolumeAnalyzer wraps a VolumeProvider with the same fail-closed
// policy as the safety verifier: one retry on provider error, then a
// not-legitimate verdict. A pair whose volume cannot be judged is not
// traded.
type VolumeAnalyzer struct {
	cfg      Config
	provider VolumeProvider
	logger   zerolog.Logger

	checks         atomic.Int64
	fakeVerdicts   atomic.Int64
	providerErrors atomic.Int64
}

// NewVolumeAnalyzer creates a volume analyzer around the given provider.
func NewVolumeAnalyzer(cfg Config, provider VolumeProvider) *VolumeAnalyzer {
	cfg.applyDefaults()
	return &VolumeAnalyzer{
		cfg:      cfg,
		provider: provider,
		logger:   log.With().Str("component", "volume").Logger(),
	}
}

// Analyze returns the volume verdict for a pair. Like Verifier.Verify
// it never returns an error; a provider that fails twice produces a
// not-legitimate verdict with the failure in Reasons.
func (a *VolumeAnalyzer) Analyze(ctx context.Context, pair market.Pair) VolumeVerdict {
	a.checks.Add(1)

	var (
		verdict VolumeVerdict
		lastErr error
	)
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.cfg.RetryBackoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}

		actx, cancel := context.WithTimeout(ctx, a.cfg.ProviderTimeout)
		verdict, lastErr = a.provider.Analyze(actx, pair)
		cancel()
		if lastErr == nil {
			break
		}
		a.logger.Warn().Err(lastErr).
			Str("pair", pair.Address).
			Int("attempt", attempt+1).
			Msg("volume provider error")
	}

	if lastErr != nil {
		a.providerErrors.Add(1)
		a.fakeVerdicts.Add(1)
		a.logger.Warn().Err(lastErr).
			Str("pair", pair.Address).
			Str("kind", string(errorKind(lastErr))).
			Msg("volume check failed closed")
		return VolumeVerdict{
			Legitimate: false,
			Source:     "analyzer",
			Reasons:    []string{fmt.Sprintf("provider error: %v", lastErr)},
			CheckedAt:  time.Now(),
		}
	}

	if !verdict.Legitimate {
		a.fakeVerdicts.Add(1)
		a.logger.Info().
			Str("pair", pair.Address).
			Str("source", verdict.Source).
			Strs("reasons", verdict.Reasons).
			Msg("fake volume detected")
	}
	return verdict
}

// VolumeStats is a snapshot of analyzer counters.
type VolumeStats struct {
	Checks         int64 `json:"checks"`
	FakeVerdicts   int64 `json:"fake_verdicts"`
	ProviderErrors int64 `json:"provider_errors"`
}

// Stats returns current counters.
func (a *VolumeAnalyzer) Stats() VolumeStats {
	return VolumeStats{
		Checks:         a.checks.Load(),
		FakeVerdicts:   a.fakeVerdicts.Load(),
		ProviderErrors: a.providerErrors.Load(),
	}
}
