package blacklist

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/storage"
)

// Kind says what an entry bans: a token address or a deployer wallet.
type Kind string

const (
	KindToken    Kind = "token"
	KindDeployer Kind = "deployer"
)

// Entry is one banned identifier. The set is append-only: entries are
// never edited or removed.
type Entry struct {
	Address string    `json:"address"`
	Kind    Kind      `json:"kind"`
	Reason  string    `json:"reason"`
	AddedAt time.Time `json:"added_at"`
}

// Store persists entries. Append returns storage.ErrDuplicate when the
// address is already present.
type Store interface {
	Append(ctx context.Context, e Entry) error
	All(ctx context.Context) ([]Entry, error)
}

// List is the process-wide blacklist: a read-through cache over the
// append-only store. Reads are lock-free for concurrent callers; writes
// go to the store first and are serialized.
type List struct {
	store Store

	mu      sync.RWMutex
	entries map[string]Entry

	onAppend func(Entry)

	appends atomic.Int64
	hits    atomic.Int64
}

// New creates an empty list bound to a store. Call Load before serving
// lookups.
func New(store Store) *List {
	return &List{
		store:   store,
		entries: make(map[string]Entry, 64),
	}
}

// Load populates the cache from the store. Called once at startup,
// before any intake runs.
func (l *List) Load(ctx context.Context) error {
	entries, err := l.store.All(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	for _, e := range entries {
		l.entries[e.Address] = e
	}
	size := len(l.entries)
	l.mu.Unlock()

	log.Info().Int("entries", size).Msg("blacklist: loaded")
	return nil
}

// SetOnAppend registers a callback fired after every successful append.
// Used to cancel in-flight evaluations touching the new entry.
func (l *List) SetOnAppend(fn func(Entry)) {
	l.mu.Lock()
	l.onAppend = fn
	l.mu.Unlock()
}

// Contains reports whether the address is banned.
func (l *List) Contains(address string) bool {
	if address == "" {
		return false
	}
	l.mu.RLock()
	_, ok := l.entries[address]
	l.mu.RUnlock()
	if ok {
		l.hits.Add(1)
	}
	return ok
}

// Lookup returns the entry for an address, if banned.
func (l *List) Lookup(address string) (Entry, bool) {
	l.mu.RLock()
	e, ok := l.entries[address]
	l.mu.RUnlock()
	return e, ok
}

// Append adds an entry, persisting before the cache is updated.
// Appending an address that is already banned is a no-op, not an error,
// and does not re-fire the callback.
func (l *List) Append(ctx context.Context, e Entry) error {
	if e.Address == "" {
		return storage.ErrInvalidInput
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}

	l.mu.Lock()
	if _, exists := l.entries[e.Address]; exists {
		l.mu.Unlock()
		return nil
	}

	if err := l.store.Append(ctx, e); err != nil {
		l.mu.Unlock()
		if errors.Is(err, storage.ErrDuplicate) {
			// Another process wrote it first; adopt it silently.
			l.mu.Lock()
			l.entries[e.Address] = e
			l.mu.Unlock()
			return nil
		}
		return err
	}

	l.entries[e.Address] = e
	cb := l.onAppend
	l.mu.Unlock()

	l.appends.Add(1)
	log.Warn().
		Str("address", e.Address).
		Str("kind", string(e.Kind)).
		Str("reason", e.Reason).
		Msg("blacklist: appended")

	if cb != nil {
		cb(e)
	}
	return nil
}

// Entries returns a copy of all entries, newest first.
func (l *List) Entries() []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out
}

// Size returns the number of banned addresses.
func (l *List) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Stats are cumulative counters for the control plane.
type Stats struct {
	Size    int   `json:"size"`
	Appends int64 `json:"appends"`
	Hits    int64 `json:"hits"`
}

func (l *List) Stats() Stats {
	return Stats{
		Size:    l.Size(),
		Appends: l.appends.Load(),
		Hits:    l.hits.Load(),
	}
}
