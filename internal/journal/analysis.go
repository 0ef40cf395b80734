package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/verify"
)

// Decision values recorded with an observation.
const (
	DecisionOpened   = "opened"   // pipeline decision ended in a position
	DecisionRejected = "rejected" // pipeline decision denied the trade
	DecisionAnalyzed = "analyzed" // on-demand analyze request, no trade decision
	DecisionError    = "error"    // pipeline aborted on a consistency fault
)

// Verification outcomes. Empty means the check did not run.
const (
	OutcomeSafe       = "safe"
	OutcomeUnsafe     = "unsafe"
	OutcomeLegitimate = "legitimate"
	OutcomeFake       = "fake"
)

// Observation is one recorded analysis: a pair snapshot, its event
// classification and what the engine decided about it. One row per
// pipeline pass and one per on-demand analyze call.
type Observation struct {
	ID          int64           `json:"id"`
	At          time.Time       `json:"at"`
	PairAddress string          `json:"pair_address"`
	TokenName   string          `json:"token_name"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	Change24h   float64         `json:"price_change_24h"`
	Volume24h   float64         `json:"volume_24h"`
	Liquidity   float64         `json:"liquidity_usd"`
	EventType   string          `json:"event_type"`
	Suspicious  []string        `json:"suspicious_patterns,omitempty"`
	Safety      string          `json:"safety,omitempty"`
	Volume      string          `json:"volume,omitempty"`
	Decision    string          `json:"decision"`
}

// ObservationStore persists observations.
type ObservationStore interface {
	RecordObservation(ctx context.Context, o Observation) error
	Observations(ctx context.Context, cutoff time.Time) ([]Observation, error)
}

// AnalysisLog writes observations to the store. Like the trade
// recorder it absorbs storage failures: an unwritable journal never
// stalls the pipeline.
type AnalysisLog struct {
	store  ObservationStore
	logger zerolog.Logger

	recorded atomic.Int64
	failures atomic.Int64
}

// NewAnalysisLog creates an analysis log on the given store.
func NewAnalysisLog(store ObservationStore) *AnalysisLog {
	return &AnalysisLog{
		store:  store,
		logger: log.With().Str("component", "analysis-log").Logger(),
	}
}

// Record writes one observation.
func (l *AnalysisLog) Record(ctx context.Context, o Observation) {
	if o.At.IsZero() {
		o.At = time.Now()
	}
	if err := l.store.RecordObservation(ctx, o); err != nil {
		l.failures.Add(1)
		l.logger.Error().Err(err).
			Str("pair", o.PairAddress).
			Str("decision", o.Decision).
			Msg("analysis journal write failed")
		return
	}
	l.recorded.Add(1)
}

// Observe builds and records an observation from a pair snapshot and
// the verification results. Pass nil for checks that did not run.
func (l *AnalysisLog) Observe(ctx context.Context, pair market.Pair, event market.EventType, suspicious []string, safety *verify.Result, volume *verify.VolumeVerdict, decision string) {
	o := Observation{
		At:          time.Now(),
		PairAddress: pair.Address,
		TokenName:   pair.BaseToken.Name,
		PriceUSD:    pair.PriceUSD,
		Change24h:   pair.PriceChange24h,
		Volume24h:   pair.Volume24h,
		Liquidity:   pair.LiquidityUSD,
		EventType:   string(event),
		Suspicious:  suspicious,
		Decision:    decision,
	}
	if safety != nil {
		o.Safety = OutcomeUnsafe
		if safety.Safe {
			o.Safety = OutcomeSafe
		}
	}
	if volume != nil {
		o.Volume = OutcomeFake
		if volume.Legitimate {
			o.Volume = OutcomeLegitimate
		}
	}
	l.Record(ctx, o)
}

// Recorded returns the number of observations written.
func (l *AnalysisLog) Recorded() int64 { return l.recorded.Load() }

// AnalysisReport summarizes observations over a window. Field names
// follow the weekly summary the operators already read.
type AnalysisReport struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalAnalyzed    int `json:"total_pairs_analyzed"`
	PotentialRugs    int `json:"potential_rugs"`
	SignificantPumps int `json:"significant_pumps"`
	CexListings      int `json:"cex_listings"`
	HighActivity     int `json:"high_activity_pairs"`
	Suspicious       int `json:"suspicious_activities"`

	AvgChange24h float64 `json:"average_price_change"`

	SafePassed  int `json:"safety_passed"`
	SafeFailed  int `json:"safety_failed"`
	VolumeLegit int `json:"volume_legitimate"`
	VolumeFake  int `json:"volume_fake"`
	Opened      int `json:"trades_opened"`
	Rejected    int `json:"trades_rejected"`
}

// BuildAnalysisReport aggregates observations. Deterministic, no I/O.
func BuildAnalysisReport(obs []Observation, from, to time.Time) AnalysisReport {
	r := AnalysisReport{From: from, To: to}
	if len(obs) == 0 {
		return r
	}

	r.TotalAnalyzed = len(obs)
	sum := 0.0

	for _, o := range obs {
		sum += o.Change24h

		switch market.EventType(o.EventType) {
		case market.EventPotentialRug:
			r.PotentialRugs++
		case market.EventSignificantPump:
			r.SignificantPumps++
		case market.EventCexListed:
			r.CexListings++
		case market.EventHighLiquidityVolume:
			r.HighActivity++
		case market.EventSuspiciousActivity:
			r.Suspicious++
		}

		switch o.Safety {
		case OutcomeSafe:
			r.SafePassed++
		case OutcomeUnsafe:
			r.SafeFailed++
		}
		switch o.Volume {
		case OutcomeLegitimate:
			r.VolumeLegit++
		case OutcomeFake:
			r.VolumeFake++
		}

		switch o.Decision {
		case DecisionOpened:
			r.Opened++
		case DecisionRejected:
			r.Rejected++
		}
	}

	r.AvgChange24h = sum / float64(len(obs))
	return r
}
