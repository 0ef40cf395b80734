package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/warden/internal/position"
)

// recordingSink captures delivered events, optionally slowly.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	delay  time.Duration
}

func (s *recordingSink) Deliver(ctx context.Context, e Event) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	d := NewDispatcher(16, a, b)
	d.Start()

	d.Publish(CriticalAlert("pairAAA", "exit order failed"))
	d.Close()

	require.Len(t, a.snapshot(), 1)
	require.Len(t, b.snapshot(), 1)
	assert.Equal(t, EventCriticalAlert, a.snapshot()[0].Type)
	assert.Equal(t, SeverityCritical, a.snapshot()[0].Severity)

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Published)
	assert.Equal(t, int64(2), stats.Delivered)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestDispatcherDropsOnFullBuffer(t *testing.T) {
	slow := &recordingSink{delay: 50 * time.Millisecond}
	d := NewDispatcher(1, slow)
	d.Start()

	for i := 0; i < 20; i++ {
		d.Publish(CriticalAlert("pairAAA", "burst"))
	}

	stats := d.Stats()
	assert.Equal(t, int64(20), stats.Published)
	assert.Greater(t, stats.Dropped, int64(0), "burst past the buffer must drop, not block")

	d.Close()
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	// No worker started: the buffer fills and stays full.
	d := NewDispatcher(2, &recordingSink{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Publish(CriticalAlert("pairAAA", "no worker"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	assert.Equal(t, int64(98), d.Stats().Dropped)
}

func TestEventHelpers(t *testing.T) {
	pos := &position.Position{
		ID:            "pos-1",
		PairAddress:   "pairAAA",
		TokenName:     "TEST",
		EntryPrice:    decimal.NewFromInt(100),
		LastPrice:     decimal.NewFromInt(88),
		AmountUSD:     decimal.NewFromInt(50),
		StopLossPct:   decimal.NewFromInt(10),
		TakeProfitPct: decimal.NewFromInt(25),
		State:         position.StateClosed,
		ExitReason:    string(position.ReasonStopLoss),
	}

	opened := PositionOpened(pos)
	assert.Equal(t, EventPositionOpened, opened.Type)
	assert.Equal(t, SeverityInfo, opened.Severity)
	assert.NotEmpty(t, opened.ID)
	assert.Equal(t, "warden", opened.Producer)

	closed := PositionClosed(pos)
	assert.Equal(t, SeverityInfo, closed.Severity)
	assert.Contains(t, closed.Body, "-12.00")

	pos.Forced = true
	forced := PositionClosed(pos)
	assert.Equal(t, SeverityCritical, forced.Severity)
	assert.Contains(t, forced.Title, "unconfirmed")

	denied := TradeDenied("pairBBB", "SCAM", []string{"VERIFICATION_FAILED", "FAKE_VOLUME"})
	assert.Equal(t, EventTradeDenied, denied.Type)
	assert.Contains(t, denied.Body, "; ")
}
