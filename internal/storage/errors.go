package storage

import "errors"

// Sentinel errors shared by every store implementation. Callers match
// with errors.Is rather than comparing messages.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with an existing
	// key. The blacklist is append-only and positions allow at most one
	// live row per pair, so duplicates are a caller-level condition, not
	// a storage fault.
	ErrDuplicate = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails before any
	// statement is executed.
	ErrInvalidInput = errors.New("invalid input")
)
