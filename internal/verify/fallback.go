package verify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/market"
)

// FallbackProvider chains two volume providers: the external checker
// first, the local heuristics when it fails. An error surfaces only
// when both fail, which is what sends the analyzer fail-closed.
type FallbackProvider struct {
	primary   VolumeProvider
	secondary VolumeProvider
	logger    zerolog.Logger
}

var _ VolumeProvider = (*FallbackProvider)(nil)

// NewFallbackProvider wraps primary with secondary as its fallback.
func NewFallbackProvider(primary, secondary VolumeProvider) *FallbackProvider {
	return &FallbackProvider{
		primary:   primary,
		secondary: secondary,
		logger:    log.With().Str("component", "volume-fallback").Logger(),
	}
}

// Analyze implements VolumeProvider.
func (f *FallbackProvider) Analyze(ctx context.Context, pair market.Pair) (VolumeVerdict, error) {
	verdict, err := f.primary.Analyze(ctx, pair)
	if err == nil {
		return verdict, nil
	}

	f.logger.Warn().Err(err).
		Str("pair", pair.Address).
		Msg("primary volume provider failed, using heuristics")

	return f.secondary.Analyze(ctx, pair)
}
