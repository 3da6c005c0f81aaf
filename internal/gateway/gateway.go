package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/routing"
	"github.com/marchog/ops-core/internal/scene"
	"github.com/marchog/ops-core/internal/screen"
)

// AssignmentResolver looks up the active scene's config for a screen.
type AssignmentResolver interface {
	ResolveActiveAssignment(ctx context.Context, screenID string) (*scene.ScreenConfig, error)
}

// RoomResolver resolves a zone to its parent room for routing metadata.
type RoomResolver interface {
	GetZoneRoom(ctx context.Context, zoneID string) (string, error)
}

// StatusPublisher pushes screen presence onto the bus. Publishes from the
// gateway are best-effort; a disconnected bus never blocks a screen.
type StatusPublisher interface {
	PublishHeartbeat(deviceID, deviceType, status string) error
	PublishState(screenID, status, page string) error
}

// Logger is the minimal logging interface the gateway depends on.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Gateway accepts screen websocket connections, drives their message
// protocol, and keeps the registry in sync with connection lifecycle.
type Gateway struct {
	cfg      config.WebSocketConfig
	registry *screen.Registry
	scenes   AssignmentResolver
	rooms    RoomResolver
	bus      StatusPublisher
	logger   Logger

	upgrader websocket.Upgrader
}

func New(cfg config.WebSocketConfig, registry *screen.Registry, scenes AssignmentResolver, rooms RoomResolver) *Gateway {
	return &Gateway{
		cfg:      cfg,
		registry: registry,
		scenes:   scenes,
		rooms:    rooms,
		logger:   noopLogger{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetLogger replaces the default no-op logger.
func (g *Gateway) SetLogger(logger Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// SetStatusPublisher wires the bus for presence publishes. Optional; without
// it the gateway runs connection handling only.
func (g *Gateway) SetStatusPublisher(bus StatusPublisher) {
	g.bus = bus
}

type registeredMsg struct {
	Type     string `json:"type"`
	ScreenID string `json:"screenId"`
}

type assignmentMsg struct {
	Type   string              `json:"type"`
	Config *scene.ScreenConfig `json:"config"`
}

type navigateMsg struct {
	Type   string         `json:"type"`
	Page   string         `json:"page"`
	Params map[string]any `json:"params,omitempty"`
}

type pongMsg struct {
	Type string `json:"type"`
}

// HandleScreen upgrades an incoming connection and runs the screen protocol
// until the peer disconnects. Route it as /ws/screen/{screenID}.
func (g *Gateway) HandleScreen(w http.ResponseWriter, r *http.Request) {
	screenID := chi.URLParam(r, "screenID")
	if screenID == "" {
		http.Error(w, "screen id required", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "screen_id", screenID, "error", err)
		return
	}

	sess := newSession(conn, g.cfg.SendBuffer)

	// A second connection for the same screen supersedes the first.
	if prior := g.registry.Register(screenID, sess); prior != nil {
		g.logger.Info("screen reconnected, closing prior session", "screen_id", screenID)
		prior.Close() //nolint:errcheck // Superseded session, best-effort
	}

	g.refreshMeta(r.Context(), screenID)
	g.publishOnline(screenID)

	sess.SendJSON(registeredMsg{Type: "registered", ScreenID: screenID})
	if cfg := g.resolveAssignment(r.Context(), screenID); cfg != nil {
		sess.SendJSON(assignmentMsg{Type: "assignment", Config: cfg})
	}

	g.logger.Info("screen connected", "screen_id", screenID)

	go sess.writePump(g.cfg)
	g.readPump(screenID, sess)
}

// readPump consumes frames until the connection drops, then runs the
// disconnect path. Only the release winner publishes offline so a
// superseded session cannot mark a reconnected screen offline.
func (g *Gateway) readPump(screenID string, sess *session) {
	defer func() {
		sess.Close() //nolint:errcheck // Teardown path
		deviceType := scene.DefaultDeviceType
		if scr, ok := g.registry.Get(screenID); ok && scr.Meta.DeviceType != "" {
			deviceType = scr.Meta.DeviceType
		}
		if g.registry.Release(screenID, sess) {
			g.publishOffline(screenID, deviceType)
			g.logger.Info("screen disconnected", "screen_id", screenID)
		}
	}()

	conn := sess.conn
	if g.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(g.cfg.MaxMessageSize))
	}
	readWait := time.Duration(g.cfg.PingInterval+g.cfg.PongTimeout) * time.Second
	if readWait <= 0 {
		readWait = 70 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error", "screen_id", screenID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
		g.handleFrame(screenID, sess, string(data))
	}
}

// handleFrame dispatches one inbound text frame. Unknown or malformed
// frames are logged and dropped; they never tear down the connection.
func (g *Gateway) handleFrame(screenID string, sess *session, frame string) {
	switch {
	case strings.HasPrefix(frame, "page:"):
		page := strings.TrimPrefix(frame, "page:")
		g.registry.SetCurrentPage(screenID, page)
		if g.bus != nil {
			//nolint:errcheck // Presence publishes are best-effort
			g.bus.PublishState(screenID, "online", page)
		}
	case frame == "ping":
		g.registry.TouchLastSeen(screenID)
		sess.SendJSON(pongMsg{Type: "pong"})
		g.publishOnline(screenID)
	case strings.HasPrefix(frame, "playlist_index:"):
		raw := strings.TrimPrefix(frame, "playlist_index:")
		idx, err := strconv.Atoi(raw)
		if err != nil {
			g.logger.Warn("malformed playlist index", "screen_id", screenID, "value", raw)
			return
		}
		g.registry.SetPlaylistIndex(screenID, idx)
	default:
		g.logger.Debug("ignoring unknown frame", "screen_id", screenID, "frame", frame)
	}
}

// SendAssignment pushes a scene config to a connected screen and refreshes
// its routing metadata. Implements the scene engine's push contract.
func (g *Gateway) SendAssignment(screenID string, cfg *scene.ScreenConfig) screen.SendResult {
	if cfg != nil {
		g.applyMeta(context.Background(), screenID, cfg)
	}
	return g.registry.Send(screenID, assignmentMsg{Type: "assignment", Config: cfg})
}

// SendNavigate tells a connected screen to show a page. Implements the bus
// bridge's navigation contract.
func (g *Gateway) SendNavigate(screenID, page string, params map[string]any) screen.SendResult {
	return g.registry.Send(screenID, navigateMsg{Type: "navigate", Page: page, Params: params})
}

func (g *Gateway) resolveAssignment(ctx context.Context, screenID string) *scene.ScreenConfig {
	if g.scenes == nil {
		return nil
	}
	cfg, err := g.scenes.ResolveActiveAssignment(ctx, screenID)
	if err != nil {
		if !errors.Is(err, scene.ErrConfigNotFound) {
			g.logger.Warn("assignment lookup failed", "screen_id", screenID, "error", err)
		}
		return nil
	}
	return cfg
}

// refreshMeta rebuilds a screen's routing metadata from its active
// assignment. Screens without one route by id and the default type only.
func (g *Gateway) refreshMeta(ctx context.Context, screenID string) {
	cfg := g.resolveAssignment(ctx, screenID)
	if cfg == nil {
		g.registry.SetMeta(screenID, routing.Meta{DeviceType: scene.DefaultDeviceType})
		return
	}
	g.applyMeta(ctx, screenID, cfg)
}

func (g *Gateway) applyMeta(ctx context.Context, screenID string, cfg *scene.ScreenConfig) {
	meta := routing.Meta{
		DeviceType:          cfg.DeviceType,
		DeviceTypeSecondary: cfg.DeviceTypeSecondary,
		ZoneID:              cfg.ZoneID,
	}
	if meta.DeviceType == "" {
		meta.DeviceType = scene.DefaultDeviceType
	}
	if meta.ZoneID != "" && g.rooms != nil {
		roomID, err := g.rooms.GetZoneRoom(ctx, meta.ZoneID)
		if err == nil {
			meta.RoomID = roomID
		}
	}
	g.registry.SetMeta(screenID, meta)
}

func (g *Gateway) publishOnline(screenID string) {
	if g.bus == nil {
		return
	}
	deviceType := scene.DefaultDeviceType
	if scr, ok := g.registry.Get(screenID); ok && scr.Meta.DeviceType != "" {
		deviceType = scr.Meta.DeviceType
	}
	//nolint:errcheck // Presence publishes are best-effort
	g.bus.PublishHeartbeat(screenID, deviceType, "online")
}

func (g *Gateway) publishOffline(screenID, deviceType string) {
	if g.bus == nil {
		return
	}
	//nolint:errcheck // Presence publishes are best-effort
	g.bus.PublishHeartbeat(screenID, deviceType, "offline")
	//nolint:errcheck
	g.bus.PublishState(screenID, "offline", "")
}
