package sqlite

import (
	"context"
	"fmt"

	"github.com/nexus-trading/warden/internal/audit"
)

// AuditSink writes audit trail entries to the audit table.
type AuditSink struct {
	db *DB
}

var _ audit.Sink = (*AuditSink)(nil)

func NewAuditSink(db *DB) *AuditSink {
	return &AuditSink{db: db}
}

func (s *AuditSink) Write(ctx context.Context, e audit.Entry) error {
	payload := e.Payload
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO audit (trace_id, event_type, ts, pair_address, token, decision, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TraceID, e.EventType, millis(e.Timestamp),
		e.PairAddress, e.Token, e.Decision, payload,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
