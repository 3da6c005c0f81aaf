package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dbPath string, apiPort int) string {
	t.Helper()

	configContent := `
site:
  id: test-site
  pages_dir: ""

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
    tls: false
  qos: 1
  topic_prefix: marchog
  reconnect:
    initial_delay: 1
    max_delay: 5

telemetry:
  enabled: false

health:
  check_interval: 30
  stale_threshold: 90

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: ` + strconv.Itoa(apiPort) + `
  timeouts:
    read: 30
    write: 60
    idle: 120
`
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func setConfigEnv(t *testing.T, path string) {
	t.Helper()
	original := os.Getenv("MARCHOG_CONFIG")
	t.Cleanup(func() { os.Setenv("MARCHOG_CONFIG", original) }) //nolint:errcheck
	os.Setenv("MARCHOG_CONFIG", path)                           //nolint:errcheck
}

// TestRunInvalidConfig verifies run fails with an invalid config path.
func TestRunInvalidConfig(t *testing.T) {
	setConfigEnv(t, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRunStartupAndShutdown exercises a full startup against an absent
// broker: the bridge retries in the background while everything else
// comes up, and cancellation shuts down cleanly.
func TestRunStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	setConfigEnv(t, writeConfig(t, dbPath, 18931))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() error = %v, want clean shutdown", err)
	}

	// The database was created and migrated.
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestGetConfigPathDefault(t *testing.T) {
	original := os.Getenv("MARCHOG_CONFIG")
	defer os.Setenv("MARCHOG_CONFIG", original) //nolint:errcheck
	os.Unsetenv("MARCHOG_CONFIG")               //nolint:errcheck

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPathEnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	setConfigEnv(t, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
