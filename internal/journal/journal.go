package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/position"
)

// Entry is one completed trade. Unconfirmed forced closes are recorded
// too, flagged so reports never count them as realized exits.
type Entry struct {
	ID          int64           `json:"id"`
	PositionID  string          `json:"position_id"`
	PairAddress string          `json:"pair_address"`
	TokenSymbol string          `json:"token_symbol"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    time.Time       `json:"closed_at"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	PnLPct      decimal.Decimal `json:"pnl_pct"`
	Reason      string          `json:"reason"`
	Confirmed   bool            `json:"confirmed"`
	Forced      bool            `json:"forced"`
}

// Store persists journal entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Since(ctx context.Context, cutoff time.Time) ([]Entry, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder turns closed positions into journal entries.
type Recorder struct {
	store  Store
	logger zerolog.Logger

	recorded atomic.Int64
	failures atomic.Int64
}

// NewRecorder creates a recorder on the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: log.With().Str("component", "journal").Logger(),
	}
}

// RecordClose journals a position that reached CLOSED. Journal failures
// are logged and counted but never block the close path.
func (r *Recorder) RecordClose(ctx context.Context, pos *position.Position) {
	closedAt := time.Now()
	if pos.ClosedAt != nil {
		closedAt = *pos.ClosedAt
	}

	pnl := decimal.Zero
	if pos.EntryPrice.IsPositive() {
		pnl = pos.LastPrice.Sub(pos.EntryPrice).Div(pos.EntryPrice).Mul(decimal.NewFromInt(100))
	}

	entry := Entry{
		PositionID:  pos.ID,
		PairAddress: pos.PairAddress,
		TokenSymbol: pos.TokenName,
		OpenedAt:    pos.EntryTime,
		ClosedAt:    closedAt,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   pos.LastPrice,
		AmountUSD:   pos.AmountUSD,
		PnLPct:      pnl,
		Reason:      pos.ExitReason,
		Confirmed:   pos.ExitConfirmed,
		Forced:      pos.Forced,
	}

	if err := r.store.Record(ctx, entry); err != nil {
		r.failures.Add(1)
		r.logger.Error().Err(err).
			Str("position_id", pos.ID).
			Str("pair", pos.PairAddress).
			Msg("journal write failed")
		return
	}
	r.recorded.Add(1)
}

// Recorded returns the number of entries written.
func (r *Recorder) Recorded() int64 { return r.recorded.Load() }
