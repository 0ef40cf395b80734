package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink delivers one event to one destination.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
	Name() string
}

// Dispatcher fans events out to sinks from a single worker goroutine.
// Publish never blocks: when the buffer is full the event is dropped
// and counted, because notification delivery must never hold up a
// trading decision.
type Dispatcher struct {
	sinks  []Sink
	ch     chan Event
	quit   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger zerolog.Logger

	published atomic.Int64
	dropped   atomic.Int64
	delivered atomic.Int64
	failures  atomic.Int64
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		sinks:  sinks,
		ch:     make(chan Event, buffer),
		quit:   make(chan struct{}),
		logger: log.With().Str("component", "notify").Logger(),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	d.logger.Info().Int("sinks", len(d.sinks)).Msg("dispatcher started")
}

// Publish enqueues an event, dropping it if the buffer is full.
func (d *Dispatcher) Publish(e Event) {
	d.published.Add(1)
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn().
			Str("type", string(e.Type)).
			Str("pair", e.Pair).
			Msg("notification dropped, buffer full")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.quit:
			// Drain what is already buffered, then stop.
			for {
				select {
				case e := <-d.ch:
					d.deliver(e)
				default:
					return
				}
			}
		case e := <-d.ch:
			d.deliver(e)
		}
	}
}

// deliver pushes one event to every sink. A failing sink is logged and
// counted; the remaining sinks still receive the event.
func (d *Dispatcher) deliver(e Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := sink.Deliver(ctx, e)
		cancel()
		if err != nil {
			d.failures.Add(1)
			d.logger.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("type", string(e.Type)).
				Msg("notification delivery failed")
			continue
		}
		d.delivered.Add(1)
	}
}

// Close stops the worker after draining the buffer.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.quit)
	})
	d.wg.Wait()
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Delivered int64 `json:"delivered"`
	Failures  int64 `json:"failures"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Published: d.published.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failures:  d.failures.Load(),
	}
}
