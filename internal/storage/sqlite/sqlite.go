// Package sqlite persists blacklist entries, positions, the trade
// journal and the audit log in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/nexus-trading/warden/internal/storage"
)

// Timestamps are stored as unix milliseconds, decimals as text.
const schema = `
CREATE TABLE IF NOT EXISTS blacklist (
	address  TEXT PRIMARY KEY,
	kind     TEXT NOT NULL,
	reason   TEXT NOT NULL,
	added_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id              TEXT PRIMARY KEY,
	pair_address    TEXT NOT NULL,
	token_address   TEXT NOT NULL,
	token_name      TEXT NOT NULL,
	entry_price     TEXT NOT NULL,
	entry_time      INTEGER NOT NULL,
	stop_loss_pct   TEXT NOT NULL,
	take_profit_pct TEXT NOT NULL,
	amount_usd      TEXT NOT NULL,
	slippage_bps    INTEGER NOT NULL,
	state           TEXT NOT NULL,
	last_price      TEXT NOT NULL,
	last_poll_at    INTEGER NOT NULL,
	exit_reason     TEXT NOT NULL DEFAULT '',
	exit_confirmed  INTEGER NOT NULL DEFAULT 0,
	forced          INTEGER NOT NULL DEFAULT 0,
	order_ref       TEXT NOT NULL DEFAULT '',
	closed_at       INTEGER,
	updated_at      INTEGER NOT NULL
);

-- At most one live position per pair, enforced below the process too.
CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_live
	ON positions(pair_address) WHERE state IN ('OPEN','CLOSING');
CREATE INDEX IF NOT EXISTS idx_positions_state ON positions(state);
CREATE INDEX IF NOT EXISTS idx_positions_closed_at ON positions(closed_at);

CREATE TABLE IF NOT EXISTS journal (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	position_id  TEXT NOT NULL,
	pair_address TEXT NOT NULL,
	token_symbol TEXT NOT NULL,
	opened_at    INTEGER NOT NULL,
	closed_at    INTEGER NOT NULL,
	entry_price  TEXT NOT NULL,
	exit_price   TEXT NOT NULL,
	amount_usd   TEXT NOT NULL,
	pnl_pct      TEXT NOT NULL,
	reason       TEXT NOT NULL,
	confirmed    INTEGER NOT NULL,
	forced       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_closed_at ON journal(closed_at);

CREATE TABLE IF NOT EXISTS audit (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	ts           INTEGER NOT NULL,
	pair_address TEXT NOT NULL DEFAULT '',
	token        TEXT NOT NULL DEFAULT '',
	decision     TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_pair ON audit(pair_address);
CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit(ts);

CREATE TABLE IF NOT EXISTS analysis (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ts            INTEGER NOT NULL,
	pair_address  TEXT NOT NULL,
	token_name    TEXT NOT NULL,
	price_usd     TEXT NOT NULL,
	change_24h    REAL NOT NULL,
	volume_24h    REAL NOT NULL,
	liquidity_usd REAL NOT NULL,
	event_type    TEXT NOT NULL,
	suspicious    TEXT NOT NULL DEFAULT '',
	safety        TEXT NOT NULL DEFAULT '',
	volume_check  TEXT NOT NULL DEFAULT '',
	decision      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_ts ON analysis(ts);
CREATE INDEX IF NOT EXISTS idx_analysis_event ON analysis(event_type);
`

// DB wraps the SQLite handle shared by all stores. Use ":memory:" as
// the path in tests.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Serialize access: modernc sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{
		db:     db,
		logger: log.With().Str("component", "sqlite").Logger(),
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Prune removes journal entries, analysis rows, audit records and
// closed positions older than the cutoff. Live positions and the
// blacklist are never pruned.
func (d *DB) Prune(ctx context.Context, cutoff time.Time) error {
	ms := cutoff.UnixMilli()

	res, err := d.db.ExecContext(ctx, `DELETE FROM journal WHERE closed_at < ?`, ms)
	if err != nil {
		return fmt.Errorf("prune journal: %w", err)
	}
	journalRows, _ := res.RowsAffected()

	res, err = d.db.ExecContext(ctx, `DELETE FROM analysis WHERE ts < ?`, ms)
	if err != nil {
		return fmt.Errorf("prune analysis: %w", err)
	}
	analysisRows, _ := res.RowsAffected()

	res, err = d.db.ExecContext(ctx, `DELETE FROM audit WHERE ts < ?`, ms)
	if err != nil {
		return fmt.Errorf("prune audit: %w", err)
	}
	auditRows, _ := res.RowsAffected()

	res, err = d.db.ExecContext(ctx,
		`DELETE FROM positions WHERE state = 'CLOSED' AND closed_at IS NOT NULL AND closed_at < ?`, ms)
	if err != nil {
		return fmt.Errorf("prune positions: %w", err)
	}
	positionRows, _ := res.RowsAffected()

	if journalRows+analysisRows+auditRows+positionRows > 0 {
		d.logger.Info().
			Int64("journal", journalRows).
			Int64("analysis", analysisRows).
			Int64("audit", auditRows).
			Int64("positions", positionRows).
			Time("cutoff", cutoff).
			Msg("pruned old rows")
	}
	return nil
}

// mapConstraintErr converts SQLite constraint violations to the
// storage sentinel errors.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint") {
		return storage.ErrDuplicate
	}
	return err
}

// millis converts a time to unix milliseconds, zero stays zero.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// fromMillis converts unix milliseconds back, zero stays zero.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
