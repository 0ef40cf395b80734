package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/storage"
)

// BlacklistStore implements blacklist.Store on SQLite. The table is
// append-only: entries are never updated or deleted.
type BlacklistStore struct {
	db *DB
}

var _ blacklist.Store = (*BlacklistStore)(nil)

// NewBlacklistStore creates a blacklist store on the shared handle.
func NewBlacklistStore(db *DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Append inserts an entry. An existing address yields
// storage.ErrDuplicate.
func (s *BlacklistStore) Append(ctx context.Context, entry blacklist.Entry) error {
	if entry.Address == "" {
		return storage.ErrInvalidInput
	}

	addedAt := entry.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO blacklist (address, kind, reason, added_at) VALUES (?, ?, ?, ?)`,
		entry.Address, string(entry.Kind), entry.Reason, addedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append blacklist entry: %w", mapConstraintErr(err))
	}
	return nil
}

// All returns every entry, oldest first.
func (s *BlacklistStore) All(ctx context.Context) ([]blacklist.Entry, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT address, kind, reason, added_at FROM blacklist ORDER BY added_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}
	defer rows.Close()

	var entries []blacklist.Entry
	for rows.Next() {
		var (
			entry   blacklist.Entry
			kind    string
			addedMs int64
		)
		if err := rows.Scan(&entry.Address, &kind, &entry.Reason, &addedMs); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		entry.Kind = blacklist.Kind(kind)
		entry.AddedAt = fromMillis(addedMs)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
