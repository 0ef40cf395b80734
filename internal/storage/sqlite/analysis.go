package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/journal"
)

// AnalysisStore persists analysis observations for reporting.
type AnalysisStore struct {
	db *DB
}

var _ journal.ObservationStore = (*AnalysisStore)(nil)

func NewAnalysisStore(db *DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

func (s *AnalysisStore) RecordObservation(ctx context.Context, o journal.Observation) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO analysis (
			ts, pair_address, token_name, price_usd, change_24h,
			volume_24h, liquidity_usd, event_type, suspicious, safety,
			volume_check, decision
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		millis(o.At), o.PairAddress, o.TokenName, o.PriceUSD.String(),
		o.Change24h, o.Volume24h, o.Liquidity, o.EventType,
		strings.Join(o.Suspicious, "; "), o.Safety, o.Volume, o.Decision,
	)
	if err != nil {
		return fmt.Errorf("insert analysis row: %w", err)
	}
	return nil
}

func (s *AnalysisStore) Observations(ctx context.Context, cutoff time.Time) ([]journal.Observation, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, ts, pair_address, token_name, price_usd, change_24h,
			volume_24h, liquidity_usd, event_type, suspicious, safety,
			volume_check, decision
		FROM analysis WHERE ts >= ? ORDER BY ts DESC`, millis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	defer rows.Close()

	var out []journal.Observation
	for rows.Next() {
		var (
			o                 journal.Observation
			ts                int64
			price, suspicious string
		)
		if err := rows.Scan(&o.ID, &ts, &o.PairAddress, &o.TokenName, &price,
			&o.Change24h, &o.Volume24h, &o.Liquidity, &o.EventType,
			&suspicious, &o.Safety, &o.Volume, &o.Decision); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		if o.PriceUSD, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse analysis price: %w", err)
		}
		o.At = fromMillis(ts)
		if suspicious != "" {
			o.Suspicious = strings.Split(suspicious, "; ")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
