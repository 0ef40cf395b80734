package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/journal"
)

// JournalStore persists closed-trade records for reporting.
type JournalStore struct {
	db *DB
}

var _ journal.Store = (*JournalStore)(nil)

func NewJournalStore(db *DB) *JournalStore {
	return &JournalStore{db: db}
}

func (s *JournalStore) Record(ctx context.Context, e journal.Entry) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO journal (
			position_id, pair_address, token_symbol, opened_at, closed_at,
			entry_price, exit_price, amount_usd, pnl_pct, reason, confirmed, forced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PositionID, e.PairAddress, e.TokenSymbol,
		millis(e.OpenedAt), millis(e.ClosedAt),
		e.EntryPrice.String(), e.ExitPrice.String(), e.AmountUSD.String(),
		e.PnLPct.String(), e.Reason, boolToInt(e.Confirmed), boolToInt(e.Forced),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (s *JournalStore) Since(ctx context.Context, cutoff time.Time) ([]journal.Entry, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, position_id, pair_address, token_symbol, opened_at, closed_at,
			entry_price, exit_price, amount_usd, pnl_pct, reason, confirmed, forced
		FROM journal WHERE closed_at >= ? ORDER BY closed_at DESC`, millis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *JournalStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM journal WHERE closed_at < ?`, millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]journal.Entry, error) {
	var out []journal.Entry
	for rows.Next() {
		var (
			e                                  journal.Entry
			entryPrice, exitPrice, amount, pnl string
			openedMs, closedMs                 int64
			confirmed, forced                  int
		)
		if err := rows.Scan(&e.ID, &e.PositionID, &e.PairAddress, &e.TokenSymbol,
			&openedMs, &closedMs, &entryPrice, &exitPrice, &amount, &pnl,
			&e.Reason, &confirmed, &forced); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		var err error
		if e.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
			return nil, fmt.Errorf("parse entry price: %w", err)
		}
		if e.ExitPrice, err = decimal.NewFromString(exitPrice); err != nil {
			return nil, fmt.Errorf("parse exit price: %w", err)
		}
		if e.AmountUSD, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if e.PnLPct, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("parse pnl: %w", err)
		}
		e.OpenedAt = fromMillis(openedMs)
		e.ClosedAt = fromMillis(closedMs)
		e.Confirmed = confirmed != 0
		e.Forced = forced != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
