package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/position"
	"github.com/nexus-trading/warden/internal/storage"
)

// PositionStore implements position.Store on SQLite. The partial
// unique index on live states backs the single-live-position
// invariant at the storage layer.
type PositionStore struct {
	db *DB
}

var _ position.Store = (*PositionStore)(nil)

// NewPositionStore creates a position store on the shared handle.
func NewPositionStore(db *DB) *PositionStore {
	return &PositionStore{db: db}
}

const positionColumns = `id, pair_address, token_address, token_name, entry_price, entry_time,
	stop_loss_pct, take_profit_pct, amount_usd, slippage_bps, state, last_price, last_poll_at,
	exit_reason, exit_confirmed, forced, order_ref, closed_at, updated_at`

// Insert persists a new position. A second live row for the same pair
// violates the partial unique index and maps to storage.ErrDuplicate.
func (s *PositionStore) Insert(ctx context.Context, pos *position.Position) error {
	var closedAt any
	if pos.ClosedAt != nil {
		closedAt = pos.ClosedAt.UnixMilli()
	}

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.PairAddress, pos.TokenAddress, pos.TokenName,
		pos.EntryPrice.String(), millis(pos.EntryTime),
		pos.StopLossPct.String(), pos.TakeProfitPct.String(),
		pos.AmountUSD.String(), pos.SlippageBps,
		string(pos.State), pos.LastPrice.String(), millis(pos.LastPollAt),
		pos.ExitReason, boolToInt(pos.ExitConfirmed), boolToInt(pos.Forced),
		pos.OrderRef, closedAt, millis(pos.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert position %s: %w", pos.ID, mapConstraintErr(err))
	}
	return nil
}

// Update persists the mutable fields of an existing position.
func (s *PositionStore) Update(ctx context.Context, pos *position.Position) error {
	var closedAt any
	if pos.ClosedAt != nil {
		closedAt = pos.ClosedAt.UnixMilli()
	}

	res, err := s.db.db.ExecContext(ctx, `
		UPDATE positions
		SET state = ?, last_price = ?, last_poll_at = ?, exit_reason = ?,
			exit_confirmed = ?, forced = ?, order_ref = ?, closed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(pos.State), pos.LastPrice.String(), millis(pos.LastPollAt),
		pos.ExitReason, boolToInt(pos.ExitConfirmed), boolToInt(pos.Forced),
		pos.OrderRef, closedAt, millis(pos.UpdatedAt), pos.ID)
	if err != nil {
		return fmt.Errorf("update position %s: %w", pos.ID, mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update position %s: %w", pos.ID, storage.ErrNotFound)
	}
	return nil
}

// Live returns all OPEN and CLOSING positions.
func (s *PositionStore) Live(ctx context.Context) ([]*position.Position, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE state IN ('OPEN','CLOSING')`)
	if err != nil {
		return nil, fmt.Errorf("load live positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// Closed returns positions closed at or after the cutoff, newest first.
func (s *PositionStore) Closed(ctx context.Context, since time.Time) ([]*position.Position, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions
		 WHERE state = 'CLOSED' AND closed_at IS NOT NULL AND closed_at >= ?
		 ORDER BY closed_at DESC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("load closed positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]*position.Position, error) {
	var out []*position.Position
	for rows.Next() {
		var (
			pos                                    position.Position
			entryPrice, slPct, tpPct, amount, last string
			state                                  string
			entryMs, lastPollMs, updatedMs         int64
			confirmed, forced                      int
			closedAt                               sql.NullInt64
		)
		if err := rows.Scan(
			&pos.ID, &pos.PairAddress, &pos.TokenAddress, &pos.TokenName,
			&entryPrice, &entryMs, &slPct, &tpPct, &amount, &pos.SlippageBps,
			&state, &last, &lastPollMs,
			&pos.ExitReason, &confirmed, &forced, &pos.OrderRef,
			&closedAt, &updatedMs,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		var err error
		if pos.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
			return nil, fmt.Errorf("parse entry price %q: %w", entryPrice, err)
		}
		if pos.StopLossPct, err = decimal.NewFromString(slPct); err != nil {
			return nil, fmt.Errorf("parse stop loss %q: %w", slPct, err)
		}
		if pos.TakeProfitPct, err = decimal.NewFromString(tpPct); err != nil {
			return nil, fmt.Errorf("parse take profit %q: %w", tpPct, err)
		}
		if pos.AmountUSD, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if pos.LastPrice, err = decimal.NewFromString(last); err != nil {
			return nil, fmt.Errorf("parse last price %q: %w", last, err)
		}

		pos.State = position.State(state)
		pos.EntryTime = fromMillis(entryMs)
		pos.LastPollAt = fromMillis(lastPollMs)
		pos.UpdatedAt = fromMillis(updatedMs)
		pos.ExitConfirmed = confirmed != 0
		pos.Forced = forced != 0
		if closedAt.Valid {
			t := fromMillis(closedAt.Int64)
			pos.ClosedAt = &t
		}

		out = append(out, &pos)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
