package observability

import (
	"context"
	"sync"
	"time"
)

// Status of a single component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is the probe result for one component.
type ComponentHealth struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Details     map[string]any `json:"details,omitempty"`
}

// SystemHealth aggregates all components; the system status is the
// worst component status.
type SystemHealth struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"ts"`
	UptimeS    float64                    `json:"uptime_s"`
}

// HealthMonitor runs registered checks periodically and on demand.
// Status transitions are reported through the onTransition callback, so
// a flapping provider surfaces once per flip instead of every probe.
type HealthMonitor struct {
	mu        sync.RWMutex
	checks    map[string]Check
	results   map[string]ComponentHealth
	startTime time.Time
	interval  time.Duration

	onTransition func(name string, from, to Status, msg string)

	stopCh  chan struct{}
	stopped sync.Once
}

// NewHealthMonitor creates a monitor probing at the given interval.
func NewHealthMonitor(interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		checks:    make(map[string]Check),
		results:   make(map[string]ComponentHealth),
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Register adds a named check. Call before Start.
func (m *HealthMonitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// SetOnTransition registers the status-transition callback.
func (m *HealthMonitor) SetOnTransition(fn func(name string, from, to Status, msg string)) {
	m.onTransition = fn
}

// Start blocks running the periodic probe loop until the context is
// cancelled or Stop is called.
func (m *HealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runChecks(ctx)
		}
	}
}

// Stop ends the periodic loop.
func (m *HealthMonitor) Stop() {
	m.stopped.Do(func() {
		close(m.stopCh)
	})
}

// Check probes everything now and returns the aggregate, for the
// /health handler.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.runChecks(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(m.results))
	worst := StatusHealthy
	for name, h := range m.results {
		components[name] = h
		if severity(h.Status) > severity(worst) {
			worst = h.Status
		}
	}

	return SystemHealth{
		Status:     worst,
		Components: components,
		Timestamp:  time.Now(),
		UptimeS:    time.Since(m.startTime).Seconds(),
	}
}

func (m *HealthMonitor) runChecks(ctx context.Context) {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	m.mu.RUnlock()

	fresh := make(map[string]ComponentHealth, len(checks))
	for name, fn := range checks {
		result := fn(ctx)
		result.Name = name
		result.LastChecked = time.Now()
		fresh[name] = result
	}

	m.mu.Lock()
	prev := m.results
	m.results = fresh
	m.mu.Unlock()

	if m.onTransition == nil {
		return
	}
	for name, cur := range fresh {
		old, existed := prev[name]
		if existed && old.Status != cur.Status {
			m.onTransition(name, old.Status, cur.Status, cur.Message)
		}
	}
}

func severity(s Status) int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return 0
	}
}
