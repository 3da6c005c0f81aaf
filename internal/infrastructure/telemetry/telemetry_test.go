package telemetry_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/infrastructure/telemetry"
)

// testConfig returns a configuration for the local dev InfluxDB.
func testConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "marchog-dev-token",
		Org:           "marchog",
		Bucket:        "screens",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInflux skips the test when no InfluxDB is reachable.
func skipIfNoInflux(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := telemetry.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close() //nolint:errcheck // Probe connection
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := telemetry.Connect(cfg)
	if !errors.Is(err, telemetry.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	if _, err := telemetry.Connect(cfg); err == nil {
		t.Fatal("Connect() should fail for an unreachable server")
	}
}

func TestConnect(t *testing.T) {
	skipIfNoInflux(t)

	client, err := telemetry.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestRecordMetrics(t *testing.T) {
	skipIfNoInflux(t)

	client, err := telemetry.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.RecordFleetSize(3, true)
	client.RecordPageChange("scr-lobby", "info-display", "hyperspace")
	client.RecordHeartbeatAge("scr-lobby", "info-display", 12*time.Second)
	client.RecordStaleAlert("scr-dock")
	client.WritePoint("custom",
		map[string]string{"source": "test"},
		map[string]interface{}{"value": 1.0})
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}

func TestClose(t *testing.T) {
	skipIfNoInflux(t)

	client, err := telemetry.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.RecordFleetSize(1, false)
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Writes after close are dropped, not panics.
	client.RecordFleetSize(1, false)
	client.Flush()
}
