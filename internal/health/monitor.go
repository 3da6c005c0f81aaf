// Package health watches connected screens for staleness. A screen that
// has signalled at least once but then gone quiet for longer than the
// configured threshold gets a stale alert on the bus each check cycle
// until it recovers or disconnects.
package health

import (
	"context"
	"time"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/screen"
)

const (
	defaultCheckInterval  = 30 * time.Second
	defaultStaleThreshold = 90 * time.Second
)

// Alerter publishes staleness alerts. Satisfied by the bus bridge.
type Alerter interface {
	Connected() bool
	PublishStaleAlert(screenID string, threshold time.Duration) error
}

type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Monitor periodically sweeps the screen registry for stale entries.
type Monitor struct {
	interval  time.Duration
	threshold time.Duration
	registry  *screen.Registry
	alerter   Alerter
	logger    Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewMonitor(cfg config.HealthConfig, registry *screen.Registry, alerter Alerter) *Monitor {
	interval := time.Duration(cfg.CheckInterval) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	threshold := time.Duration(cfg.StaleThreshold) * time.Second
	if threshold <= 0 {
		threshold = defaultStaleThreshold
	}
	return &Monitor{
		interval:  interval,
		threshold: threshold,
		registry:  registry,
		alerter:   alerter,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

func (m *Monitor) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Threshold reports the staleness cutoff in effect.
func (m *Monitor) Threshold() time.Duration {
	return m.threshold
}

// Run sweeps on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check runs one sweep, alerting for every stale screen. A screen is
// stale when it has signalled before and its last signal is older than
// the threshold. Screens that have never signalled are left alone; they
// may still be starting up.
func (m *Monitor) Check() []string {
	now := m.now()
	var stale []string
	for _, scr := range m.registry.All() {
		if scr.LastSeen.IsZero() {
			continue
		}
		if now.Sub(scr.LastSeen) <= m.threshold {
			continue
		}
		stale = append(stale, scr.ID)
		m.logger.Warn("screen is stale",
			"screen_id", scr.ID,
			"last_seen", scr.LastSeen,
			"threshold", m.threshold)
		if m.alerter != nil && m.alerter.Connected() {
			if err := m.alerter.PublishStaleAlert(scr.ID, m.threshold); err != nil {
				m.logger.Debug("stale alert publish failed", "screen_id", scr.ID, "error", err)
			}
		}
	}
	return stale
}
