package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexus-trading/warden/internal/market"
)

// Safety status values, worst first.
const (
	StatusDanger  = "DANGER"
	StatusWarning = "WARNING"
	StatusGood    = "GOOD"
	StatusError   = "ERROR"
)

// RiskItem is one named risk reported by a safety provider.
type RiskItem struct {
	Name        string `json:"name"`
	Level       string `json:"level"`
	Description string `json:"description,omitempty"`
	Score       int    `json:"score,omitempty"`
}

// Result is a token safety verdict. Safe is true only for a clean GOOD
// report; any provider failure yields Safe=false with StatusError, so
// an unreachable oracle can never admit a token.
type Result struct {
	Safe          bool       `json:"safe"`
	Status        string     `json:"status"`
	Score         int        `json:"score"`
	Risks         []RiskItem `json:"risks,omitempty"`
	Deployer      string     `json:"deployer,omitempty"`
	BundledSupply bool       `json:"bundled_supply"`
	TopHolderPct  float64    `json:"top_holder_pct,omitempty"`
	Source        string     `json:"source"`
	CheckedAt     time.Time  `json:"checked_at"`
}

// VolumeVerdict is a fake-volume verdict. Score is provider-specific:
// the real-volume ratio for the external checker, the fraction of
// passed checks for the heuristic analyzer.
type VolumeVerdict struct {
	Legitimate bool      `json:"legitimate"`
	Source     string    `json:"source"`
	Score      float64   `json:"score"`
	Reasons    []string  `json:"reasons,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// ErrorKind classifies provider transport failures. Every kind fails
// closed; the classification drives logging and operator stats only.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindBadResponse ErrorKind = "bad_response"
	KindUnavailable ErrorKind = "unavailable"
)

// ProviderError is a classified failure from a verification provider.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// errorKind extracts the classification from an error chain. Anything
// unclassified counts as unavailable.
func errorKind(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

// SafetyProvider checks a token against an external safety oracle.
type SafetyProvider interface {
	Check(ctx context.Context, tokenAddress string) (Result, error)
}

// VolumeProvider judges whether a pair's reported volume is real.
type VolumeProvider interface {
	Analyze(ctx context.Context, pair market.Pair) (VolumeVerdict, error)
}
