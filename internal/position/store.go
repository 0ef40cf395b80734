package position

import (
	"context"
	"time"
)

// Store persists positions across restarts. Implementations must
// reject a second live (OPEN or CLOSING) row for the same pair address
// with storage.ErrDuplicate so the single-live-position invariant
// survives even if the in-memory guard is bypassed.
type Store interface {
	// Insert persists a newly opened position.
	Insert(ctx context.Context, pos *Position) error

	// Update persists state, price and exit fields of an existing position.
	Update(ctx context.Context, pos *Position) error

	// Live returns all positions in OPEN or CLOSING state.
	Live(ctx context.Context) ([]*Position, error)

	// Closed returns positions closed at or after the cutoff, newest first.
	Closed(ctx context.Context, since time.Time) ([]*Position, error)
}
