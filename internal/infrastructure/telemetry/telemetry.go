// Package telemetry records screen fleet metrics into InfluxDB.
//
// Writes are non-blocking and batched by the underlying client; callers
// fire and forget while the client flushes on its configured interval.
// When telemetry is disabled the rest of the system runs without it.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/marchog/ops-core/internal/infrastructure/config"
)

var (
	// ErrDisabled is returned by Connect when telemetry is turned off.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed is returned when the server cannot be reached.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected is returned by health checks after Close.
	ErrNotConnected = errors.New("telemetry: not connected")
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	millisPerSecond = 1000
)

// Client wraps the InfluxDB v2 client for screen fleet metrics.
//
// All methods are safe for concurrent use. Write methods never block;
// points are batched and flushed asynchronously.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.TelemetryConfig

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect opens a connection to the telemetry server and verifies it
// with a ping before returning.
func Connect(cfg config.TelemetryConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback for async write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Close flushes pending writes and shuts the client down.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("telemetry health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("telemetry health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Flush blocks until all buffered points are written. Safe after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil {
		return
	}
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// RecordFleetSize records the number of connected screens and whether
// the bus is up. Written once per health sweep.
func (c *Client) RecordFleetSize(connectedScreens int, busConnected bool) {
	if !c.IsConnected() {
		return
	}

	busUp := 0
	if busConnected {
		busUp = 1
	}
	point := write.NewPoint(
		"fleet",
		nil,
		map[string]interface{}{
			"connected_screens": connectedScreens,
			"bus_connected":     busUp,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordPageChange records a screen navigating to a page.
func (c *Client) RecordPageChange(screenID, deviceType, page string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"page_change",
		map[string]string{
			"screen_id":   screenID,
			"device_type": deviceType,
		},
		map[string]interface{}{
			"page": page,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordHeartbeatAge records how long ago a screen last signalled.
// Screens that have never signalled are not recorded.
func (c *Client) RecordHeartbeatAge(screenID, deviceType string, age time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"screen_id":   screenID,
			"device_type": deviceType,
		},
		map[string]interface{}{
			"age_seconds": age.Seconds(),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordStaleAlert records a staleness alert for a screen.
func (c *Client) RecordStaleAlert(screenID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"stale_alert",
		map[string]string{
			"screen_id": screenID,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement for anything the helpers do
// not cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
