package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/routing"
	"github.com/marchog/ops-core/internal/screen"
)

// Connection constants.
const (
	// connectTimeout is the maximum time to wait for a connection attempt.
	connectTimeout = 10 * time.Second

	// publishTimeout is the maximum time to wait for publish acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on disconnect.
	disconnectQuiesce = 250 // milliseconds

	// keepAlive is the keepalive interval for the connection.
	keepAlive = 60 * time.Second

	// maxPayloadSize caps outbound payloads (1MB).
	maxPayloadSize = 1 << 20

	// defaultQueueSize is used when the config leaves queue_size unset.
	defaultQueueSize = 256

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// State is the bridge's connection state.
type State int32

const (
	// StateDisconnected means no broker connection and no attempt underway.
	StateDisconnected State = iota

	// StateConnecting means a connection attempt is in progress.
	StateConnecting

	// StateConnected means the bridge is connected and subscribed.
	StateConnected
)

// String returns the state name for logging and the status API.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Navigator delivers navigate commands to connected screens. The session
// gateway implements this.
type Navigator interface {
	SendNavigate(screenID, page string, params map[string]any) screen.SendResult
}

// HandlerFunc is invoked on the bridge goroutine for each inbound message
// whose topic matches the registered pattern. Handlers must not block.
type HandlerFunc func(topic string, env Envelope)

// Message is an inbound bus message before decoding.
type Message struct {
	Topic   string
	Payload []byte
}

type busHandler struct {
	prefix string
	fn     HandlerFunc
}

type publishRequest struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge manages the broker connection in its own goroutine and relays
// messages between the bus and the connection-handling side of the server.
type Bridge struct {
	cfg      config.MQTTConfig
	registry *screen.Registry
	topics   routing.Topics
	logger   Logger

	state atomic.Int32

	// inbound is fed by paho handler goroutines and drained by Run.
	inbound chan Message

	// publishCh carries accepted publish requests into the bridge goroutine.
	publishCh chan publishRequest

	navMu     sync.RWMutex
	navigator Navigator

	handlerMu sync.RWMutex
	handlers  []busHandler
}

// New creates a bridge. Call Run to start it.
func New(cfg config.MQTTConfig, registry *screen.Registry) *Bridge {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bridge{
		cfg:       cfg,
		registry:  registry,
		logger:    noopLogger{},
		inbound:   make(chan Message, queueSize),
		publishCh: make(chan publishRequest, queueSize),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// SetNavigator wires the component that delivers navigate commands to
// screens. Must be set before Run receives traffic; inbound navigates with
// no navigator are dropped.
func (b *Bridge) SetNavigator(n Navigator) {
	b.navMu.Lock()
	b.navigator = n
	b.navMu.Unlock()
}

// RegisterHandler subscribes fn to inbound messages whose topic matches
// pattern. Patterns are matched by prefix with any trailing "#" stripped,
// so "marchog/sensor/#" matches every sensor topic.
func (b *Bridge) RegisterHandler(pattern string, fn HandlerFunc) {
	prefix := strings.TrimSuffix(strings.TrimSuffix(pattern, "#"), "/")
	b.handlerMu.Lock()
	b.handlers = append(b.handlers, busHandler{prefix: prefix, fn: fn})
	b.handlerMu.Unlock()
}

// State returns the bridge's current connection state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Connected reports whether the bridge currently has a broker connection.
func (b *Bridge) Connected() bool {
	return b.State() == StateConnected
}

// Broker returns the configured broker address for the status API.
func (b *Bridge) Broker() string {
	return fmt.Sprintf("%s:%d", b.cfg.Broker.Host, b.cfg.Broker.Port)
}

// Run owns the broker connection until ctx is cancelled. Connection
// failures are retried with exponential backoff, doubling from the
// configured initial delay up to the max and resetting after a successful
// connection. Run never returns a broker error; only ctx cancellation ends
// it.
func (b *Bridge) Run(ctx context.Context) error {
	initial := time.Duration(b.cfg.Reconnect.InitialDelay) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	max := time.Duration(b.cfg.Reconnect.MaxDelay) * time.Second
	if max < initial {
		max = initial
	}
	delay := initial

	for {
		b.state.Store(int32(StateConnecting))
		client, lost, err := b.connect()
		if err != nil {
			b.state.Store(int32(StateDisconnected))
			b.logger.Warn("bus connection failed",
				"broker", b.Broker(), "retry_in", delay.String(), "error", err)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay, max)
			continue
		}

		delay = initial
		b.state.Store(int32(StateConnected))
		b.logger.Info("bus connected", "broker", b.Broker())

		serveErr := b.serve(ctx, client, lost)
		b.state.Store(int32(StateDisconnected))
		client.Disconnect(disconnectQuiesce)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("bus connection lost",
			"broker", b.Broker(), "retry_in", delay.String(), "error", serveErr)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay = nextDelay(delay, max)
	}
}

// connect makes one connection attempt and establishes subscriptions.
// The returned channel receives the error when the connection drops.
func (b *Bridge) connect() (pahomqtt.Client, <-chan error, error) {
	lost := make(chan error, 1)

	opts := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if b.cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, b.cfg.Broker.Host, b.cfg.Broker.Port))
	opts.SetClientID(b.cfg.Broker.ClientID)
	if b.cfg.Auth.Username != "" {
		opts.SetUsername(b.cfg.Auth.Username)
		opts.SetPassword(b.cfg.Auth.Password)
	}
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	// Reconnection is the run loop's job, with its own backoff.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	qos := byte(b.cfg.QoS)
	for _, pattern := range b.topics.Subscriptions() {
		sub := client.Subscribe(pattern, qos, b.onMessage)
		if !sub.WaitTimeout(connectTimeout) || sub.Error() != nil {
			client.Disconnect(disconnectQuiesce)
			return nil, nil, fmt.Errorf("%w: subscribing %s: %v",
				ErrConnectionFailed, pattern, sub.Error())
		}
	}

	return client, lost, nil
}

// onMessage runs on paho handler goroutines; it hands the message to the
// bridge goroutine without blocking.
func (b *Bridge) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	m := Message{Topic: msg.Topic(), Payload: msg.Payload()}
	select {
	case b.inbound <- m:
	default:
		b.logger.Warn("inbound queue full, dropping message", "topic", m.Topic)
	}
}

// serve processes inbound and outbound traffic until the connection drops
// or ctx is cancelled.
func (b *Bridge) serve(ctx context.Context, client pahomqtt.Client, lost <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lost:
			return err
		case msg := <-b.inbound:
			b.dispatch(msg)
		case req := <-b.publishCh:
			token := client.Publish(req.topic, byte(b.cfg.QoS), req.retained, req.payload)
			if !token.WaitTimeout(publishTimeout) {
				b.logger.Warn("publish timed out", "topic", req.topic)
			} else if err := token.Error(); err != nil {
				b.logger.Warn("publish failed", "topic", req.topic, "error", err)
			}
		}
	}
}

// dispatch decodes an inbound message, runs matching handlers, and fans
// navigate commands out to matching screens.
func (b *Bridge) dispatch(msg Message) {
	env := DecodeEnvelope(msg.Payload)

	b.handlerMu.RLock()
	handlers := make([]busHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.handlerMu.RUnlock()

	for _, h := range handlers {
		if strings.HasPrefix(msg.Topic, h.prefix) {
			b.callHandler(h, msg.Topic, env)
		}
	}

	if env.Kind == KindNavigate {
		b.fanOutNavigate(msg.Topic, env)
	}
}

// callHandler isolates handler panics from the bridge goroutine.
func (b *Bridge) callHandler(h busHandler, topic string, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panic recovered", "topic", topic, "panic", r)
		}
	}()
	h.fn(topic, env)
}

// fanOutNavigate delivers a navigate to every screen the topic addresses.
func (b *Bridge) fanOutNavigate(topic string, env Envelope) {
	b.navMu.RLock()
	nav := b.navigator
	b.navMu.RUnlock()
	if nav == nil {
		return
	}

	for _, s := range b.registry.Matching(topic) {
		result := nav.SendNavigate(s.ID, env.PageID, env.Params)
		b.logger.Debug("bridged navigate to screen",
			"topic", topic, "screen_id", s.ID, "page", env.PageID, "result", result.String())
	}
}

// Publish enqueues a JSON message for the bridge goroutine to send. It
// returns immediately: ErrNotConnected while the bridge has no broker
// connection (the message is lost, there is no outbound persistence) and
// ErrQueueFull when the outbound queue cannot accept more.
//
// A timestamp field is stamped when the payload lacks one.
func (b *Bridge) Publish(topic string, payload map[string]any, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !b.Connected() {
		return ErrNotConnected
	}

	stamped := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		stamped[k] = v
	}
	if _, ok := stamped["timestamp"]; !ok {
		stamped["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(stamped)
	if err != nil {
		return fmt.Errorf("encoding payload for %s: %w", topic, err)
	}
	if len(data) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}

	select {
	case b.publishCh <- publishRequest{topic: topic, payload: data, retained: retained}:
		return nil
	default:
		return ErrQueueFull
	}
}

// PublishNavigate publishes a navigate command to each target. Targets may
// be full topics ("marchog/..."), screen ids ("scr-..."), or bare
// addressing names ("all", "type/door-panel") which get the topic prefix.
func (b *Bridge) PublishNavigate(targets []string, pageID string, params map[string]any, source string) error {
	if params == nil {
		params = map[string]any{}
	}
	payload := map[string]any{
		"type":    "navigate",
		"page_id": pageID,
		"params":  params,
		"source":  source,
	}

	var errs []error
	for _, target := range targets {
		if err := b.Publish(expandTarget(target), payload, false); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}

// expandTarget maps an automation target shorthand to a full topic.
func expandTarget(target string) string {
	switch {
	case strings.HasPrefix(target, routing.TopicPrefix+"/"):
		return target
	case strings.HasPrefix(target, "scr-"):
		return routing.Topics{}.Screen(target)
	default:
		return routing.TopicPrefix + "/" + target
	}
}

// PublishHeartbeat publishes a retained heartbeat for a device.
func (b *Bridge) PublishHeartbeat(deviceID, deviceType, status string) error {
	return b.Publish(b.topics.Heartbeat(deviceID), map[string]any{
		"type":        "heartbeat",
		"device_id":   deviceID,
		"device_type": deviceType,
		"status":      status,
	}, true)
}

// PublishState publishes a retained state report for a screen. An empty
// page is encoded as null, matching the offline report shape.
func (b *Bridge) PublishState(screenID, status, page string) error {
	var p any
	if page != "" {
		p = page
	}
	return b.Publish(b.topics.State(screenID), map[string]any{
		"type":      "state",
		"device_id": screenID,
		"status":    status,
		"page":      p,
	}, true)
}

// PublishStaleAlert publishes a staleness alert for a screen.
func (b *Bridge) PublishStaleAlert(screenID string, threshold time.Duration) error {
	return b.Publish(b.topics.AlertStaleScreen(), map[string]any{
		"type":       "alert",
		"alert_type": "stale-screen",
		"device_id":  screenID,
		"message": fmt.Sprintf("Screen %s has not responded in %ds",
			screenID, int(threshold.Seconds())),
	}, false)
}

// PublishSceneActivated announces a scene activation on the bus.
func (b *Bridge) PublishSceneActivated(sceneID string) error {
	return b.Publish(b.topics.Event("scene-activated"), map[string]any{
		"type":     "event",
		"event":    "scene-activated",
		"scene_id": sceneID,
	}, false)
}

// sleepCtx waits for d or ctx cancellation; reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextDelay doubles the backoff delay up to max.
func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}
