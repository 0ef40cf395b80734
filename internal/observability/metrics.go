// Package observability provides Prometheus metrics and component
// health monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	registry *prometheus.Registry

	// Intake
	PairsObserved prometheus.Counter
	PairsAccepted prometheus.Counter
	PairsRejected *prometheus.CounterVec

	// Verification
	VerificationChecks  *prometheus.CounterVec
	VerificationLatency *prometheus.HistogramVec
	ProviderErrors      *prometheus.CounterVec

	// Positions
	PositionsOpened prometheus.Counter
	PositionsClosed *prometheus.CounterVec
	ForcedCloses    prometheus.Counter
	LivePositions   prometheus.Gauge
	PricePolls      prometheus.Counter
	PricePollErrors prometheus.Counter

	// Execution
	OrdersSubmitted *prometheus.CounterVec
	OrderRetries    prometheus.Counter
	OrderFailures   *prometheus.CounterVec
	OrderLatency    prometheus.Histogram

	// Notifications
	NotificationsSent    *prometheus.CounterVec
	NotificationsDropped prometheus.Counter

	// Blacklist
	BlacklistSize    prometheus.Gauge
	BlacklistAppends prometheus.Counter
	BlacklistHits    prometheus.Counter

	// Consistency
	ConsistencyViolations prometheus.Counter
}

// NewMetrics creates a metrics set on its own registry, so multiple
// instances can coexist in tests.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "warden"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		PairsObserved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_observed_total",
			Help:      "Pairs seen by intake, including duplicates.",
		}),
		PairsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_accepted_total",
			Help:      "Pairs forwarded to verification.",
		}),
		PairsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_rejected_total",
			Help:      "Pairs rejected before or during evaluation.",
		}, []string{"reason"}),

		VerificationChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_checks_total",
			Help:      "Verification calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		VerificationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_latency_seconds",
			Help:      "Verification provider latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider errors.",
		}, []string{"provider"}),

		PositionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_opened_total",
			Help:      "Positions opened.",
		}),
		PositionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_closed_total",
			Help:      "Positions closed by exit reason.",
		}, []string{"reason"}),
		ForcedCloses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_closes_total",
			Help:      "Positions closed unconfirmed after exit retry exhaustion.",
		}),
		LivePositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_positions",
			Help:      "Positions currently OPEN or CLOSING.",
		}),
		PricePolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_polls_total",
			Help:      "Price polls executed by position monitors.",
		}),
		PricePollErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_poll_errors_total",
			Help:      "Failed price polls.",
		}),

		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders submitted to the execution backend.",
		}, []string{"side"}),
		OrderRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_retries_total",
			Help:      "Order attempts beyond the first.",
		}),
		OrderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_failures_total",
			Help:      "Orders that failed after all retries.",
		}, []string{"side"}),
		OrderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_latency_seconds",
			Help:      "End-to-end order submission latency.",
			Buckets:   prometheus.DefBuckets,
		}),

		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered per sink.",
		}, []string{"sink"}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped on queue overflow.",
		}),

		BlacklistSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blacklist_size",
			Help:      "Entries in the blacklist.",
		}),
		BlacklistAppends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blacklist_appends_total",
			Help:      "Blacklist appends.",
		}),
		BlacklistHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blacklist_hits_total",
			Help:      "Pairs rejected on a blacklist match.",
		}),

		ConsistencyViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_violations_total",
			Help:      "Detected position invariant violations.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
