package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Entry event types.
const (
	EventPairSeen     = "pair_seen"
	EventVerification = "verification"
	EventRiskCheck    = "risk_check"
	EventTransition   = "transition"
	EventOrder        = "order"
	EventBlacklist    = "blacklist"
)

// Entry is a single audit record. Every decision the engine takes gets
// one, forming a replayable log per pair.
type Entry struct {
	TraceID     string    `json:"trace_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"ts"`
	PairAddress string    `json:"pair_address,omitempty"`
	Token       string    `json:"token,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	Payload     string    `json:"payload"` // JSON of the full event
}

// Sink receives every audit entry for durable storage.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Trail keeps a capped in-memory buffer of recent entries for the
// /audit endpoint and forwards everything to the sink. A nil sink
// keeps the trail memory-only.
type Trail struct {
	mu      sync.Mutex
	sink    Sink
	entries []Entry
	maxBuf  int
}

// NewTrail creates an audit trail. maxBuf caps the in-memory buffer;
// once full the oldest entries are discarded.
func NewTrail(sink Sink, maxBuf int) *Trail {
	if maxBuf < 0 {
		maxBuf = 0
	}
	return &Trail{
		sink:    sink,
		entries: make([]Entry, 0, maxBuf),
		maxBuf:  maxBuf,
	}
}

// Record appends an event to the trail. v is marshalled as the payload.
func (t *Trail) Record(traceID, eventType, pairAddress, decision string, v any) {
	t.add(Entry{
		TraceID:     traceID,
		EventType:   eventType,
		Timestamp:   time.Now(),
		PairAddress: pairAddress,
		Decision:    decision,
		Payload:     mustMarshal(v),
	})
}

// RecordTransition logs a position state change.
func (t *Trail) RecordTransition(traceID, pairAddress, from, to string) {
	t.add(Entry{
		TraceID:     traceID,
		EventType:   EventTransition,
		Timestamp:   time.Now(),
		PairAddress: pairAddress,
		Decision:    from + ">" + to,
		Payload:     "{}",
	})
}

// ByPair returns buffered entries for a pair address, oldest first.
func (t *Trail) ByPair(pairAddress string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Entry
	for _, e := range t.entries {
		if e.PairAddress == pairAddress {
			out = append(out, e)
		}
	}
	return out
}

// ByTrace returns buffered entries sharing a trace id, oldest first.
func (t *Trail) ByTrace(traceID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Entry
	for _, e := range t.entries {
		if e.TraceID == traceID {
			out = append(out, e)
		}
	}
	return out
}

// Recent returns up to n buffered entries, newest first.
func (t *Trail) Recent(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = t.entries[len(t.entries)-1-i]
	}
	return out
}

// Len returns the buffered entry count.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Trail) add(entry Entry) {
	t.mu.Lock()
	if t.maxBuf > 0 {
		if len(t.entries) >= t.maxBuf {
			copy(t.entries, t.entries[1:])
			t.entries[len(t.entries)-1] = entry
		} else {
			t.entries = append(t.entries, entry)
		}
	}
	t.mu.Unlock()

	// Sink write happens outside the lock.
	if t.sink != nil {
		if err := t.sink.Write(context.Background(), entry); err != nil {
			log.Error().Err(err).
				Str("event_type", entry.EventType).
				Str("pair", entry.PairAddress).
				Msg("audit sink write failed")
		}
	}
}

func mustMarshal(v any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("audit payload marshal failed")
		return "{}"
	}
	return string(data)
}
