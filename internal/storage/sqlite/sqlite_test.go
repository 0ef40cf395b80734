package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/audit"
	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/position"
	"github.com/nexus-trading/warden/internal/storage"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testPosition(id, pair string, state position.State) *position.Position {
	now := time.Now()
	return &position.Position{
		ID:            id,
		PairAddress:   pair,
		TokenAddress:  "tokenMint" + id,
		TokenName:     "TEST",
		EntryPrice:    decimal.NewFromFloat(0.0042),
		EntryTime:     now,
		StopLossPct:   decimal.NewFromInt(10),
		TakeProfitPct: decimal.NewFromInt(25),
		AmountUSD:     decimal.NewFromInt(100),
		SlippageBps:   150,
		State:         state,
		LastPrice:     decimal.NewFromFloat(0.0042),
		LastPollAt:    now,
		UpdatedAt:     now,
	}
}

func TestPositionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewPositionStore(db)
	ctx := context.Background()

	want := testPosition("pos-1", "pairAAA", position.StateOpen)
	require.NoError(t, store.Insert(ctx, want))

	live, err := store.Live(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)

	got := live[0]
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.PairAddress, got.PairAddress)
	assert.Equal(t, want.TokenAddress, got.TokenAddress)
	assert.Equal(t, position.StateOpen, got.State)
	assert.True(t, got.EntryPrice.Equal(want.EntryPrice), "entry price %s != %s", got.EntryPrice, want.EntryPrice)
	assert.True(t, got.StopLossPct.Equal(want.StopLossPct))
	assert.True(t, got.TakeProfitPct.Equal(want.TakeProfitPct))
	assert.True(t, got.AmountUSD.Equal(want.AmountUSD))
	assert.Equal(t, want.SlippageBps, got.SlippageBps)
	assert.Equal(t, want.EntryTime.UnixMilli(), got.EntryTime.UnixMilli())
	assert.Nil(t, got.ClosedAt)
}

func TestSecondLivePositionRejected(t *testing.T) {
	db := newTestDB(t)
	store := NewPositionStore(db)
	ctx := context.Background()

	first := testPosition("pos-1", "pairAAA", position.StateOpen)
	require.NoError(t, store.Insert(ctx, first))

	second := testPosition("pos-2", "pairAAA", position.StateOpen)
	err := store.Insert(ctx, second)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// A live position on a different pair is fine.
	other := testPosition("pos-3", "pairBBB", position.StateClosing)
	require.NoError(t, store.Insert(ctx, other))

	// Once the first closes, the pair frees up.
	first.State = position.StateClosed
	closedAt := time.Now()
	first.ClosedAt = &closedAt
	require.NoError(t, store.Update(ctx, first))

	require.NoError(t, store.Insert(ctx, second))

	live, err := store.Live(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 2)
}

func TestUpdateMissingPosition(t *testing.T) {
	db := newTestDB(t)
	store := NewPositionStore(db)

	ghost := testPosition("pos-404", "pairZZZ", position.StateOpen)
	err := store.Update(context.Background(), ghost)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClosedSince(t *testing.T) {
	db := newTestDB(t)
	store := NewPositionStore(db)
	ctx := context.Background()

	oldClose := time.Now().Add(-48 * time.Hour)
	recentClose := time.Now().Add(-1 * time.Hour)

	older := testPosition("pos-old", "pairAAA", position.StateClosed)
	older.ClosedAt = &oldClose
	require.NoError(t, store.Insert(ctx, older))

	recent := testPosition("pos-new", "pairBBB", position.StateClosed)
	recent.ClosedAt = &recentClose
	require.NoError(t, store.Insert(ctx, recent))

	got, err := store.Closed(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pos-new", got[0].ID)

	got, err = store.Closed(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pos-new", got[0].ID, "newest first")
}

func TestBlacklistStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewBlacklistStore(db)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, blacklist.Entry{
		Address: "deployerAAA",
		Kind:    blacklist.KindDeployer,
		Reason:  "bundled supply",
	}))
	require.NoError(t, store.Append(ctx, blacklist.Entry{
		Address: "tokenBBB",
		Kind:    blacklist.KindToken,
		Reason:  "rug",
	}))

	err := store.Append(ctx, blacklist.Entry{Address: "deployerAAA", Kind: blacklist.KindDeployer, Reason: "again"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = store.Append(ctx, blacklist.Entry{Kind: blacklist.KindToken})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "deployerAAA", all[0].Address)
	assert.Equal(t, blacklist.KindDeployer, all[0].Kind)
	assert.False(t, all[0].AddedAt.IsZero())
}

func TestJournalSinceAndPrune(t *testing.T) {
	db := newTestDB(t)
	store := NewJournalStore(db)
	ctx := context.Background()

	mk := func(id string, closedAt time.Time, pnl float64) journal.Entry {
		return journal.Entry{
			PositionID:  id,
			PairAddress: "pair-" + id,
			TokenSymbol: "TEST",
			OpenedAt:    closedAt.Add(-time.Hour),
			ClosedAt:    closedAt,
			EntryPrice:  decimal.NewFromFloat(1.0),
			ExitPrice:   decimal.NewFromFloat(1.0 + pnl/100),
			AmountUSD:   decimal.NewFromInt(50),
			PnLPct:      decimal.NewFromFloat(pnl),
			Reason:      "TAKE_PROFIT",
			Confirmed:   true,
		}
	}

	require.NoError(t, store.Record(ctx, mk("a", time.Now().Add(-72*time.Hour), 12)))
	require.NoError(t, store.Record(ctx, mk("b", time.Now().Add(-2*time.Hour), -8)))
	require.NoError(t, store.Record(ctx, mk("c", time.Now().Add(-1*time.Hour), 25)))

	got, err := store.Since(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].PositionID, "newest first")
	assert.True(t, got[0].PnLPct.Equal(decimal.NewFromInt(25)))
	assert.NotZero(t, got[0].ID)

	pruned, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	got, err = store.Since(ctx, time.Now().Add(-96*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAuditSinkWrite(t *testing.T) {
	db := newTestDB(t)
	sink := NewAuditSink(db)
	ctx := context.Background()

	err := sink.Write(ctx, audit.Entry{
		TraceID:     "trace-1",
		EventType:   audit.EventVerification,
		Timestamp:   time.Now(),
		PairAddress: "pairAAA",
		Decision:    "SAFE",
		Payload:     `{"score":12}`,
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM audit`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPruneRemovesOldRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	positions := NewPositionStore(db)
	journals := NewJournalStore(db)
	sink := NewAuditSink(db)

	oldTime := time.Now().Add(-30 * 24 * time.Hour)

	stale := testPosition("pos-stale", "pairOLD", position.StateClosed)
	stale.ClosedAt = &oldTime
	require.NoError(t, positions.Insert(ctx, stale))

	live := testPosition("pos-live", "pairNEW", position.StateOpen)
	require.NoError(t, positions.Insert(ctx, live))

	require.NoError(t, journals.Record(ctx, journal.Entry{
		PositionID: "pos-stale", PairAddress: "pairOLD", TokenSymbol: "OLD",
		OpenedAt: oldTime.Add(-time.Hour), ClosedAt: oldTime,
		EntryPrice: decimal.NewFromInt(1), ExitPrice: decimal.NewFromInt(1),
		AmountUSD: decimal.NewFromInt(10), PnLPct: decimal.Zero, Reason: "STOP_LOSS",
	}))
	require.NoError(t, sink.Write(ctx, audit.Entry{
		TraceID: "trace-old", EventType: audit.EventPairSeen, Timestamp: oldTime,
	}))

	require.NoError(t, db.Prune(ctx, time.Now().Add(-7*24*time.Hour)))

	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&count))
	assert.Equal(t, 1, count, "live position survives pruning")
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM journal`).Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM audit`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestAnalysisRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewAnalysisStore(db)
	ctx := context.Background()

	now := time.Now()
	want := journal.Observation{
		At:          now,
		PairAddress: "pairAAA",
		TokenName:   "Test Token",
		PriceUSD:    decimal.RequireFromString("0.000021"),
		Change24h:   -62.5,
		Volume24h:   120000,
		Liquidity:   8000,
		EventType:   "potential_rug",
		Suspicious:  []string{"price drop with volume spike", "liquidity below floor"},
		Safety:      "unsafe",
		Volume:      "legitimate",
		Decision:    "rejected",
	}
	require.NoError(t, store.RecordObservation(ctx, want))
	require.NoError(t, store.RecordObservation(ctx, journal.Observation{
		At:          now.Add(-72 * time.Hour),
		PairAddress: "pairOLD",
		TokenName:   "OLD",
		PriceUSD:    decimal.NewFromInt(1),
		EventType:   "normal_trading",
		Decision:    "analyzed",
	}))

	got, err := store.Observations(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)

	o := got[0]
	assert.NotZero(t, o.ID)
	assert.Equal(t, want.PairAddress, o.PairAddress)
	assert.Equal(t, want.TokenName, o.TokenName)
	assert.True(t, o.PriceUSD.Equal(want.PriceUSD))
	assert.Equal(t, want.Change24h, o.Change24h)
	assert.Equal(t, want.EventType, o.EventType)
	assert.Equal(t, want.Suspicious, o.Suspicious)
	assert.Equal(t, want.Safety, o.Safety)
	assert.Equal(t, want.Volume, o.Volume)
	assert.Equal(t, want.Decision, o.Decision)
	assert.WithinDuration(t, want.At, o.At, time.Second)

	all, err := store.Observations(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "pairAAA", all[0].PairAddress, "newest first")
	assert.Nil(t, all[1].Suspicious, "empty suspicious set stays nil")

	require.NoError(t, db.Prune(ctx, now.Add(-24*time.Hour)))
	all, err = store.Observations(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}
