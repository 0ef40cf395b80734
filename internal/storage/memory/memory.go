// Package memory provides in-memory store implementations with the
// same contract as the sqlite ones. Used by tests and dry-run mode,
// where losing state on restart is acceptable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/position"
	"github.com/nexus-trading/warden/internal/storage"
)

// BlacklistStore keeps blacklist entries in a map.
type BlacklistStore struct {
	mu      sync.Mutex
	entries map[string]blacklist.Entry
}

var _ blacklist.Store = (*BlacklistStore)(nil)

func NewBlacklistStore() *BlacklistStore {
	return &BlacklistStore{entries: make(map[string]blacklist.Entry)}
}

func (s *BlacklistStore) Append(ctx context.Context, e blacklist.Entry) error {
	if e.Address == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.Address]; exists {
		return storage.ErrDuplicate
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	s.entries[e.Address] = e
	return nil
}

func (s *BlacklistStore) All(ctx context.Context) ([]blacklist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blacklist.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

// positionRow is a flat snapshot of the persisted position fields.
// Storing snapshots instead of the *Position keeps the store contract
// identical to sqlite: reads rebuild fresh objects.
type positionRow struct {
	id, pairAddress, tokenAddress, tokenName string
	entryPrice, slPct, tpPct, amountUSD      string
	slippageBps                              int
	entryTime                                time.Time
	state                                    position.State
	lastPrice                                string
	lastPollAt                               time.Time
	exitReason                               string
	exitConfirmed, forced                    bool
	orderRef                                 string
	closedAt                                 *time.Time
	updatedAt                                time.Time
}

// PositionStore keeps positions keyed by ID and enforces the
// one-live-position-per-pair rule the same way the sqlite partial
// index does.
type PositionStore struct {
	mu   sync.Mutex
	rows map[string]positionRow
}

var _ position.Store = (*PositionStore)(nil)

func NewPositionStore() *PositionStore {
	return &PositionStore{rows: make(map[string]positionRow)}
}

func (s *PositionStore) Insert(ctx context.Context, pos *position.Position) error {
	row := snapshot(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[row.id]; exists {
		return storage.ErrDuplicate
	}
	if isLive(row.state) {
		for _, existing := range s.rows {
			if existing.pairAddress == row.pairAddress && isLive(existing.state) {
				return storage.ErrDuplicate
			}
		}
	}
	s.rows[row.id] = row
	return nil
}

func (s *PositionStore) Update(ctx context.Context, pos *position.Position) error {
	row := snapshot(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[row.id]; !exists {
		return storage.ErrNotFound
	}
	s.rows[row.id] = row
	return nil
}

func (s *PositionStore) Live(ctx context.Context) ([]*position.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*position.Position
	for _, row := range s.rows {
		if isLive(row.state) {
			out = append(out, restore(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out, nil
}

func (s *PositionStore) Closed(ctx context.Context, since time.Time) ([]*position.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*position.Position
	for _, row := range s.rows {
		if row.state == position.StateClosed && row.closedAt != nil && !row.closedAt.Before(since) {
			out = append(out, restore(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClosedAt != nil && out[j].ClosedAt != nil && out[i].ClosedAt.After(*out[j].ClosedAt)
	})
	return out, nil
}

func isLive(s position.State) bool {
	return s == position.StateOpen || s == position.StateClosing
}

func snapshot(pos *position.Position) positionRow {
	row := positionRow{
		id:            pos.ID,
		pairAddress:   pos.PairAddress,
		tokenAddress:  pos.TokenAddress,
		tokenName:     pos.TokenName,
		entryPrice:    pos.EntryPrice.String(),
		slPct:         pos.StopLossPct.String(),
		tpPct:         pos.TakeProfitPct.String(),
		amountUSD:     pos.AmountUSD.String(),
		slippageBps:   pos.SlippageBps,
		entryTime:     pos.EntryTime,
		state:         pos.State,
		lastPrice:     pos.LastPrice.String(),
		lastPollAt:    pos.LastPollAt,
		exitReason:    pos.ExitReason,
		exitConfirmed: pos.ExitConfirmed,
		forced:        pos.Forced,
		orderRef:      pos.OrderRef,
		updatedAt:     pos.UpdatedAt,
	}
	if pos.ClosedAt != nil {
		t := *pos.ClosedAt
		row.closedAt = &t
	}
	return row
}

func restore(row positionRow) *position.Position {
	pos := &position.Position{
		ID:            row.id,
		PairAddress:   row.pairAddress,
		TokenAddress:  row.tokenAddress,
		TokenName:     row.tokenName,
		EntryPrice:    mustDecimal(row.entryPrice),
		EntryTime:     row.entryTime,
		StopLossPct:   mustDecimal(row.slPct),
		TakeProfitPct: mustDecimal(row.tpPct),
		AmountUSD:     mustDecimal(row.amountUSD),
		SlippageBps:   row.slippageBps,
		State:         row.state,
		LastPrice:     mustDecimal(row.lastPrice),
		LastPollAt:    row.lastPollAt,
		ExitReason:    row.exitReason,
		ExitConfirmed: row.exitConfirmed,
		Forced:        row.forced,
		OrderRef:      row.orderRef,
		UpdatedAt:     row.updatedAt,
	}
	if row.closedAt != nil {
		t := *row.closedAt
		pos.ClosedAt = &t
	}
	return pos
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// JournalStore keeps journal entries in an append slice.
type JournalStore struct {
	mu      sync.Mutex
	entries []journal.Entry
	nextID  int64
}

var _ journal.Store = (*JournalStore)(nil)

func NewJournalStore() *JournalStore {
	return &JournalStore{nextID: 1}
}

func (s *JournalStore) Record(ctx context.Context, e journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, e)
	return nil
}

func (s *JournalStore) Since(ctx context.Context, cutoff time.Time) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []journal.Entry
	for _, e := range s.entries {
		if !e.ClosedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.After(out[j].ClosedAt) })
	return out, nil
}

func (s *JournalStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var pruned int64
	for _, e := range s.entries {
		if e.ClosedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return pruned, nil
}

// AnalysisStore keeps analysis observations in an append slice.
type AnalysisStore struct {
	mu     sync.Mutex
	obs    []journal.Observation
	nextID int64
}

var _ journal.ObservationStore = (*AnalysisStore)(nil)

func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{nextID: 1}
}

func (s *AnalysisStore) RecordObservation(ctx context.Context, o journal.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.nextID
	s.nextID++
	s.obs = append(s.obs, o)
	return nil
}

func (s *AnalysisStore) Observations(ctx context.Context, cutoff time.Time) ([]journal.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []journal.Observation
	for _, o := range s.obs {
		if !o.At.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}
