package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/storage/memory"
	"github.com/nexus-trading/warden/internal/verify"
)

// failObsStore rejects every write.
type failObsStore struct{}

func (failObsStore) RecordObservation(ctx context.Context, o journal.Observation) error {
	return errors.New("disk full")
}

func (failObsStore) Observations(ctx context.Context, cutoff time.Time) ([]journal.Observation, error) {
	return nil, nil
}

func analysisPair() market.Pair {
	return market.Pair{
		Chain:          "solana",
		Address:        "pairAAA",
		BaseToken:      market.Token{Address: "mintAAA", Symbol: "TEST", Name: "Test Token"},
		PriceUSD:       decimal.NewFromFloat(0.0042),
		PriceChange24h: -55,
		Volume24h:      120000,
		LiquidityUSD:   8000,
		ObservedAt:     time.Now(),
	}
}

func TestObserveRecordsFullObservation(t *testing.T) {
	store := memory.NewAnalysisStore()
	l := journal.NewAnalysisLog(store)

	safety := &verify.Result{Safe: false, Status: verify.StatusDanger, Source: "rugcheck"}
	volume := &verify.VolumeVerdict{Legitimate: true, Source: "pocket_universe"}

	l.Observe(context.Background(), analysisPair(), market.EventPotentialRug,
		[]string{"price drop 55% with liquidity 8000"}, safety, volume, journal.DecisionRejected)

	obs, err := store.Observations(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, obs, 1)

	o := obs[0]
	assert.Equal(t, "pairAAA", o.PairAddress)
	assert.Equal(t, "Test Token", o.TokenName)
	assert.Equal(t, string(market.EventPotentialRug), o.EventType)
	assert.Equal(t, journal.OutcomeUnsafe, o.Safety)
	assert.Equal(t, journal.OutcomeLegitimate, o.Volume)
	assert.Equal(t, journal.DecisionRejected, o.Decision)
	assert.Equal(t, []string{"price drop 55% with liquidity 8000"}, o.Suspicious)
	assert.Equal(t, int64(1), l.Recorded())
}

func TestObserveNilChecksLeaveOutcomesEmpty(t *testing.T) {
	store := memory.NewAnalysisStore()
	l := journal.NewAnalysisLog(store)

	l.Observe(context.Background(), analysisPair(), market.EventNormalTrading, nil, nil, nil, journal.DecisionAnalyzed)

	obs, err := store.Observations(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Empty(t, obs[0].Safety, "check that did not run leaves no outcome")
	assert.Empty(t, obs[0].Volume)
}

func TestAnalysisLogAbsorbsStoreFailure(t *testing.T) {
	l := journal.NewAnalysisLog(failObsStore{})

	l.Record(context.Background(), journal.Observation{PairAddress: "pairAAA", Decision: journal.DecisionError})

	assert.Equal(t, int64(0), l.Recorded())
}

func obsWith(event market.EventType, change float64, safety, volume, decision string) journal.Observation {
	return journal.Observation{
		At:          time.Now(),
		PairAddress: "pair",
		EventType:   string(event),
		Change24h:   change,
		Safety:      safety,
		Volume:      volume,
		Decision:    decision,
	}
}

func TestBuildAnalysisReportAggregates(t *testing.T) {
	obs := []journal.Observation{
		obsWith(market.EventPotentialRug, -60, journal.OutcomeUnsafe, journal.OutcomeFake, journal.DecisionRejected),
		obsWith(market.EventSignificantPump, 180, journal.OutcomeSafe, journal.OutcomeLegitimate, journal.DecisionOpened),
		obsWith(market.EventCexListed, 40, journal.OutcomeSafe, journal.OutcomeLegitimate, journal.DecisionOpened),
		obsWith(market.EventHighLiquidityVolume, 12, journal.OutcomeSafe, journal.OutcomeFake, journal.DecisionRejected),
		obsWith(market.EventSuspiciousActivity, -8, "", "", journal.DecisionAnalyzed),
		obsWith(market.EventNormalTrading, 4, journal.OutcomeSafe, journal.OutcomeLegitimate, journal.DecisionRejected),
	}

	to := time.Now()
	r := journal.BuildAnalysisReport(obs, to.Add(-7*24*time.Hour), to)

	assert.Equal(t, 6, r.TotalAnalyzed)
	assert.Equal(t, 1, r.PotentialRugs)
	assert.Equal(t, 1, r.SignificantPumps)
	assert.Equal(t, 1, r.CexListings)
	assert.Equal(t, 1, r.HighActivity)
	assert.Equal(t, 1, r.Suspicious)
	assert.InDelta(t, 28.0, r.AvgChange24h, 0.001)

	assert.Equal(t, 4, r.SafePassed)
	assert.Equal(t, 1, r.SafeFailed)
	assert.Equal(t, 3, r.VolumeLegit)
	assert.Equal(t, 2, r.VolumeFake)
	assert.Equal(t, 2, r.Opened)
	assert.Equal(t, 3, r.Rejected)
}

func TestBuildAnalysisReportEmpty(t *testing.T) {
	to := time.Now()
	r := journal.BuildAnalysisReport(nil, to.Add(-24*time.Hour), to)

	assert.Equal(t, 0, r.TotalAnalyzed)
	assert.Equal(t, 0.0, r.AvgChange24h)
}
