// Package intake admits observed pairs into the decision pipeline.
// It is the first gate: address validation, a blacklist consult before
// anything downstream spends provider quota, a seen-set with TTL so
// each pair is evaluated once per window, and cheap structural filters.
package intake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/market"
)

// Rejection reason codes. The blacklisted_deployer code is produced
// after verification, when the deployer is first known, but belongs to
// the same vocabulary.
const (
	ReasonBlacklistedPair     = "blacklisted_pair"
	ReasonBlacklistedToken    = "blacklisted_token"
	ReasonBlacklistedDeployer = "blacklisted_deployer"
	ReasonDuplicate           = "duplicate"
	ReasonInFlight            = "in_flight"
	ReasonInvalidAddress      = "invalid_address"
	ReasonNoPrice             = "no_price"
	ReasonLowLiquidity        = "low_liquidity"
	ReasonLowVolume           = "low_volume"
	ReasonTooYoung            = "too_young"
)

// maxTracked caps the seen-set so a hostile feed cannot grow it
// without bound; the oldest entry is evicted past the cap.
const maxTracked = 10000

// Result is the outcome of one Submit.
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Tracker reports whether a pair already has an evaluation or a live
// position. Implemented by the position manager.
type Tracker interface {
	InFlight(pairAddress string) bool
}

// OnPair is called for every admitted pair.
type OnPair func(ctx context.Context, pair market.Pair, source string)

// Intake deduplicates and validates observed pairs.
type Intake struct {
	cfg     config.DiscoveryConfig
	filters config.FiltersConfig
	deny    *blacklist.List
	tracker Tracker
	onPair  OnPair
	logger  zerolog.Logger

	mu   sync.Mutex
	seen map[string]time.Time

	observed    atomic.Int64
	accepted    atomic.Int64
	duplicates  atomic.Int64
	inFlight    atomic.Int64
	blacklisted atomic.Int64
	rejected    atomic.Int64
}

// New creates an intake stage. deny and tracker may be nil to skip
// those consults.
func New(cfg config.DiscoveryConfig, filters config.FiltersConfig, deny *blacklist.List, tracker Tracker, onPair OnPair) *Intake {
	return &Intake{
		cfg:     cfg,
		filters: filters,
		deny:    deny,
		tracker: tracker,
		onPair:  onPair,
		logger:  log.With().Str("component", "intake").Logger(),
		seen:    make(map[string]time.Time, 256),
	}
}

// Submit feeds one pair observation through the gate. Admitted pairs
// reach the OnPair callback exactly once per seen-TTL window.
func (i *Intake) Submit(ctx context.Context, pair market.Pair, source string) Result {
	i.observed.Add(1)

	if pair.Address == "" || pair.BaseToken.Address == "" {
		return i.reject(pair, ReasonInvalidAddress)
	}
	if isSolana(pair.Chain) && (!validAddress(pair.Address) || !validAddress(pair.BaseToken.Address)) {
		return i.reject(pair, ReasonInvalidAddress)
	}
	if !pair.PriceUSD.IsPositive() {
		return i.reject(pair, ReasonNoPrice)
	}

	if i.deny != nil {
		if i.deny.Contains(pair.Address) {
			i.blacklisted.Add(1)
			return i.logReject(pair, ReasonBlacklistedPair)
		}
		if i.deny.Contains(pair.BaseToken.Address) {
			i.blacklisted.Add(1)
			return i.logReject(pair, ReasonBlacklistedToken)
		}
	}

	// Mark seen before the remaining checks: a pair rejected by the
	// filters below is not reconsidered until the TTL expires.
	if !i.admit(pair.Address) {
		i.duplicates.Add(1)
		return Result{Reason: ReasonDuplicate}
	}

	if i.tracker != nil && i.tracker.InFlight(pair.Address) {
		i.inFlight.Add(1)
		return Result{Reason: ReasonInFlight}
	}

	if pair.LiquidityUSD < i.filters.MinLiquidityUSD {
		return i.reject(pair, ReasonLowLiquidity)
	}
	if pair.Volume24h < i.filters.MinVolume24hUSD {
		return i.reject(pair, ReasonLowVolume)
	}
	if age := pair.Age(time.Now()); age > 0 && age < time.Duration(i.filters.MinAgeHours*float64(time.Hour)) {
		return i.reject(pair, ReasonTooYoung)
	}

	i.accepted.Add(1)
	i.logger.Info().
		Str("pair", pair.Address).
		Str("token", pair.BaseToken.Symbol).
		Str("dex", pair.DexID).
		Float64("liquidity_usd", pair.LiquidityUSD).
		Str("source", source).
		Msg("pair admitted")

	if i.onPair != nil {
		i.onPair(ctx, pair, source)
	}
	return Result{Accepted: true}
}

func (i *Intake) reject(pair market.Pair, reason string) Result {
	i.rejected.Add(1)
	return i.logReject(pair, reason)
}

func (i *Intake) logReject(pair market.Pair, reason string) Result {
	i.logger.Debug().
		Str("pair", pair.Address).
		Str("token", pair.BaseToken.Address).
		Str("reason", reason).
		Msg("pair rejected")
	return Result{Reason: reason}
}

// admit marks the pair seen, reporting false when it is already inside
// its TTL window.
func (i *Intake) admit(address string) bool {
	now := time.Now()
	ttl := time.Duration(i.cfg.SeenTTLMin) * time.Minute

	i.mu.Lock()
	defer i.mu.Unlock()

	if at, ok := i.seen[address]; ok && now.Sub(at) < ttl {
		return false
	}

	if len(i.seen) >= maxTracked {
		var oldestKey string
		var oldestAt time.Time
		for k, v := range i.seen {
			if oldestAt.IsZero() || v.Before(oldestAt) {
				oldestKey = k
				oldestAt = v
			}
		}
		delete(i.seen, oldestKey)
	}
	i.seen[address] = now
	return true
}

func isSolana(chain string) bool {
	return chain == "" || chain == "solana"
}

// validAddress checks for a base58 string decoding to a 32-byte key.
func validAddress(address string) bool {
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == 32
}

// Run evicts expired seen entries until the context is cancelled.
func (i *Intake) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ttl := time.Duration(i.cfg.SeenTTLMin) * time.Minute
			cutoff := time.Now().Add(-ttl)

			i.mu.Lock()
			for k, v := range i.seen {
				if v.Before(cutoff) {
					delete(i.seen, k)
				}
			}
			i.mu.Unlock()
		}
	}
}

// Stats are cumulative intake counters.
type Stats struct {
	Observed    int64 `json:"observed"`
	Accepted    int64 `json:"accepted"`
	Duplicates  int64 `json:"duplicates"`
	InFlight    int64 `json:"in_flight"`
	Blacklisted int64 `json:"blacklisted"`
	Rejected    int64 `json:"rejected"`
	Tracked     int   `json:"tracked"`
}

func (i *Intake) Stats() Stats {
	i.mu.Lock()
	tracked := len(i.seen)
	i.mu.Unlock()

	return Stats{
		Observed:    i.observed.Load(),
		Accepted:    i.accepted.Load(),
		Duplicates:  i.duplicates.Load(),
		InFlight:    i.inFlight.Load(),
		Blacklisted: i.blacklisted.Load(),
		Rejected:    i.rejected.Load(),
		Tracked:     tracked,
	}
}
