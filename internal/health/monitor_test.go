package health

import (
	"sync"
	"testing"
	"time"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/screen"
)

type fakeSession struct{}

func (fakeSession) SendJSON(any) screen.SendResult { return screen.Delivered }
func (fakeSession) Close() error                   { return nil }

type fakeAlerter struct {
	mu        sync.Mutex
	connected bool
	alerts    []string
}

func (f *fakeAlerter) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeAlerter) PublishStaleAlert(screenID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, screenID)
	return nil
}

func (f *fakeAlerter) alerted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.alerts))
	copy(out, f.alerts)
	return out
}

func newTestMonitor(t *testing.T) (*Monitor, *screen.Registry, *fakeAlerter) {
	t.Helper()
	registry := screen.NewRegistry()
	alerter := &fakeAlerter{connected: true}
	m := NewMonitor(config.HealthConfig{CheckInterval: 30, StaleThreshold: 90}, registry, alerter)
	return m, registry, alerter
}

func TestCheckStaleness(t *testing.T) {
	tests := []struct {
		name      string
		sinceSeen time.Duration
		stale     bool
	}{
		{"well within threshold", 10 * time.Second, false},
		{"just under threshold", 89 * time.Second, false},
		{"exactly at threshold", 90 * time.Second, false},
		{"just over threshold", 91 * time.Second, true},
		{"long gone", 10 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, registry, alerter := newTestMonitor(t)
			registry.Register("scr-1", fakeSession{})
			registry.TouchLastSeen("scr-1")

			scr, _ := registry.Get("scr-1")
			m.now = func() time.Time { return scr.LastSeen.Add(tt.sinceSeen) }

			stale := m.Check()
			if tt.stale {
				if len(stale) != 1 || stale[0] != "scr-1" {
					t.Errorf("Check() = %v, want [scr-1]", stale)
				}
				if got := alerter.alerted(); len(got) != 1 {
					t.Errorf("alerts = %v, want one for scr-1", got)
				}
			} else {
				if len(stale) != 0 {
					t.Errorf("Check() = %v, want none", stale)
				}
				if got := alerter.alerted(); len(got) != 0 {
					t.Errorf("alerts = %v, want none", got)
				}
			}
		})
	}
}

func TestCheckSkipsNeverSeenScreens(t *testing.T) {
	m, registry, alerter := newTestMonitor(t)
	registry.Register("scr-fresh", fakeSession{})

	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	if stale := m.Check(); len(stale) != 0 {
		t.Errorf("Check() = %v, want none for never-seen screen", stale)
	}
	if got := alerter.alerted(); len(got) != 0 {
		t.Errorf("alerts = %v, want none", got)
	}
}

func TestCheckAlertsEveryCycleUntilRecovery(t *testing.T) {
	m, registry, alerter := newTestMonitor(t)
	registry.Register("scr-1", fakeSession{})
	registry.TouchLastSeen("scr-1")

	scr, _ := registry.Get("scr-1")
	m.now = func() time.Time { return scr.LastSeen.Add(5 * time.Minute) }

	m.Check()
	m.Check()
	if got := alerter.alerted(); len(got) != 2 {
		t.Errorf("alerts after two sweeps = %v, want two", got)
	}

	// Recovery stops the alerts.
	registry.TouchLastSeen("scr-1")
	recovered, _ := registry.Get("scr-1")
	m.now = func() time.Time { return recovered.LastSeen.Add(time.Second) }
	if stale := m.Check(); len(stale) != 0 {
		t.Errorf("Check() after recovery = %v, want none", stale)
	}
}

func TestCheckSkipsAlertWhenBusDisconnected(t *testing.T) {
	m, registry, alerter := newTestMonitor(t)
	alerter.connected = false
	registry.Register("scr-1", fakeSession{})
	registry.TouchLastSeen("scr-1")

	scr, _ := registry.Get("scr-1")
	m.now = func() time.Time { return scr.LastSeen.Add(5 * time.Minute) }

	// Still reported stale, just not published.
	if stale := m.Check(); len(stale) != 1 {
		t.Errorf("Check() = %v, want [scr-1]", stale)
	}
	if got := alerter.alerted(); len(got) != 0 {
		t.Errorf("alerts = %v, want none while disconnected", got)
	}
}

func TestMonitorDefaults(t *testing.T) {
	m := NewMonitor(config.HealthConfig{}, screen.NewRegistry(), nil)
	if m.interval != defaultCheckInterval {
		t.Errorf("interval = %v, want %v", m.interval, defaultCheckInterval)
	}
	if m.Threshold() != defaultStaleThreshold {
		t.Errorf("threshold = %v, want %v", m.Threshold(), defaultStaleThreshold)
	}
}
