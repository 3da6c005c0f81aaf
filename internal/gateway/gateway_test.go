package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/scene"
	"github.com/marchog/ops-core/internal/screen"
)

type fakeScenes struct {
	configs map[string]*scene.ScreenConfig
}

func (f *fakeScenes) ResolveActiveAssignment(_ context.Context, screenID string) (*scene.ScreenConfig, error) {
	cfg, ok := f.configs[screenID]
	if !ok {
		return nil, scene.ErrConfigNotFound
	}
	return cfg, nil
}

type fakeRooms struct {
	zones map[string]string
}

func (f *fakeRooms) GetZoneRoom(_ context.Context, zoneID string) (string, error) {
	return f.zones[zoneID], nil
}

type statusCall struct {
	kind       string
	deviceID   string
	deviceType string
	status     string
	page       string
}

type fakeBus struct {
	mu    sync.Mutex
	calls []statusCall
}

func (f *fakeBus) PublishHeartbeat(deviceID, deviceType, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statusCall{kind: "heartbeat", deviceID: deviceID, deviceType: deviceType, status: status})
	return nil
}

func (f *fakeBus) PublishState(screenID, status, page string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statusCall{kind: "state", deviceID: screenID, status: status, page: page})
	return nil
}

func (f *fakeBus) snapshot() []statusCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]statusCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type testHarness struct {
	gateway  *Gateway
	registry *screen.Registry
	bus      *fakeBus
	server   *httptest.Server
}

func newTestHarness(t *testing.T, configs map[string]*scene.ScreenConfig) *testHarness {
	t.Helper()

	registry := screen.NewRegistry()
	bus := &fakeBus{}
	scenes := &fakeScenes{configs: configs}
	rooms := &fakeRooms{zones: map[string]string{"zn-lobby": "rm-ground"}}

	cfg := config.WebSocketConfig{
		MaxMessageSize: 4096,
		PingInterval:   30,
		PongTimeout:    10,
		SendBuffer:     16,
	}
	g := New(cfg, registry, scenes, rooms)
	g.SetStatusPublisher(bus)

	router := chi.NewRouter()
	router.Get("/ws/screen/{screenID}", g.HandleScreen)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testHarness{gateway: g, registry: registry, bus: bus, server: server}
}

func (h *testHarness) dial(t *testing.T, screenID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/screen/" + screenID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", screenID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandleScreenRegistersAndPushesAssignment(t *testing.T) {
	h := newTestHarness(t, map[string]*scene.ScreenConfig{
		"scr-1": {
			ScreenID:   "scr-1",
			Mode:       scene.ModeStatic,
			StaticPage: "hyperspace",
			ZoneID:     "zn-lobby",
			DeviceType: "viewport",
		},
	})
	conn := h.dial(t, "scr-1")

	msg := readJSON(t, conn)
	if msg["type"] != "registered" || msg["screenId"] != "scr-1" {
		t.Errorf("registered message = %v", msg)
	}

	msg = readJSON(t, conn)
	if msg["type"] != "assignment" {
		t.Fatalf("expected assignment, got %v", msg)
	}
	cfg, ok := msg["config"].(map[string]any)
	if !ok {
		t.Fatalf("assignment config = %v", msg["config"])
	}
	if cfg["static_page"] != "hyperspace" {
		t.Errorf("static_page = %v, want hyperspace", cfg["static_page"])
	}

	scr, ok := h.registry.Get("scr-1")
	if !ok {
		t.Fatal("scr-1 not registered")
	}
	if scr.Meta.DeviceType != "viewport" {
		t.Errorf("DeviceType = %q, want viewport", scr.Meta.DeviceType)
	}
	if scr.Meta.RoomID != "rm-ground" {
		t.Errorf("RoomID = %q, want rm-ground", scr.Meta.RoomID)
	}
}

func TestHandleScreenWithoutAssignment(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-2")

	msg := readJSON(t, conn)
	if msg["type"] != "registered" {
		t.Fatalf("first message = %v", msg)
	}

	waitFor(t, "registration", func() bool {
		_, ok := h.registry.Get("scr-2")
		return ok
	})
	scr, _ := h.registry.Get("scr-2")
	if scr.Meta.DeviceType != scene.DefaultDeviceType {
		t.Errorf("DeviceType = %q, want %q", scr.Meta.DeviceType, scene.DefaultDeviceType)
	}
}

func TestPageFrameUpdatesCurrentPage(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("page:viewfinder")); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, "current page", func() bool {
		scr, ok := h.registry.Get("scr-1")
		return ok && scr.CurrentPage == "viewfinder"
	})

	waitFor(t, "state publish", func() bool {
		for _, c := range h.bus.snapshot() {
			if c.kind == "state" && c.status == "online" && c.page == "viewfinder" {
				return true
			}
		}
		return false
	})
}

func TestPingYieldsPong(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readJSON(t, conn)
	if msg["type"] != "pong" {
		t.Errorf("reply = %v, want pong", msg)
	}

	scr, _ := h.registry.Get("scr-1")
	if scr.LastSeen.IsZero() {
		t.Error("LastSeen not updated by ping")
	}
}

func TestPlaylistIndexFrame(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)

	// Malformed index is dropped without tearing down the connection.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("playlist_index:abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("playlist_index:3")); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, "playlist index", func() bool {
		scr, ok := h.registry.Get("scr-1")
		return ok && scr.PlaylistIndex == 3
	})
}

func TestDisconnectReleasesAndPublishesOffline(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)

	waitFor(t, "registration", func() bool { return h.registry.Count() == 1 })

	conn.Close()

	waitFor(t, "release", func() bool { return h.registry.Count() == 0 })
	waitFor(t, "offline publishes", func() bool {
		var offlineBeat, offlineState bool
		for _, c := range h.bus.snapshot() {
			if c.kind == "heartbeat" && c.status == "offline" {
				offlineBeat = true
			}
			if c.kind == "state" && c.status == "offline" && c.page == "" {
				offlineState = true
			}
		}
		return offlineBeat && offlineState
	})
}

func TestReconnectSupersedesPriorSession(t *testing.T) {
	h := newTestHarness(t, nil)

	first := h.dial(t, "scr-1")
	readJSON(t, first)
	waitFor(t, "first registration", func() bool { return h.registry.Count() == 1 })

	second := h.dial(t, "scr-1")
	readJSON(t, second)

	// The superseded connection is closed by the gateway.
	first.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	if got := h.registry.Count(); got != 1 {
		t.Errorf("Count() = %d after reconnect, want 1", got)
	}

	// The stale session's cleanup must not evict the new one.
	time.Sleep(50 * time.Millisecond)
	if _, ok := h.registry.Get("scr-1"); !ok {
		t.Error("reconnected screen missing from registry")
	}

	if err := second.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write on new session: %v", err)
	}
	msg := readJSON(t, second)
	if msg["type"] != "pong" {
		t.Errorf("reply = %v, want pong", msg)
	}
}

func TestSendNavigate(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)
	waitFor(t, "registration", func() bool { return h.registry.Count() == 1 })

	result := h.gateway.SendNavigate("scr-1", "diagnostics", map[string]any{"panel": "b"})
	if result != screen.Delivered {
		t.Fatalf("SendNavigate = %v, want Delivered", result)
	}

	msg := readJSON(t, conn)
	if msg["type"] != "navigate" || msg["page"] != "diagnostics" {
		t.Errorf("navigate message = %v", msg)
	}
	params, _ := msg["params"].(map[string]any)
	if params["panel"] != "b" {
		t.Errorf("params = %v", msg["params"])
	}

	if result := h.gateway.SendNavigate("scr-missing", "diagnostics", nil); result != screen.NoSession {
		t.Errorf("SendNavigate to absent screen = %v, want NoSession", result)
	}
}

func TestSendAssignmentRefreshesMeta(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)
	waitFor(t, "registration", func() bool { return h.registry.Count() == 1 })

	cfg := &scene.ScreenConfig{
		ScreenID:   "scr-1",
		Mode:       scene.ModeStatic,
		StaticPage: "atrium",
		ZoneID:     "zn-lobby",
		DeviceType: "door-panel",
	}
	if result := h.gateway.SendAssignment("scr-1", cfg); result != screen.Delivered {
		t.Fatalf("SendAssignment = %v, want Delivered", result)
	}

	msg := readJSON(t, conn)
	if msg["type"] != "assignment" {
		t.Fatalf("message = %v", msg)
	}

	scr, _ := h.registry.Get("scr-1")
	if scr.Meta.DeviceType != "door-panel" {
		t.Errorf("DeviceType = %q, want door-panel", scr.Meta.DeviceType)
	}
	if scr.Meta.ZoneID != "zn-lobby" || scr.Meta.RoomID != "rm-ground" {
		t.Errorf("zone/room meta = %q/%q", scr.Meta.ZoneID, scr.Meta.RoomID)
	}
}

func TestSessionSendJSONAfterClose(t *testing.T) {
	h := newTestHarness(t, nil)
	conn := h.dial(t, "scr-1")
	readJSON(t, conn)
	waitFor(t, "registration", func() bool { return h.registry.Count() == 1 })

	scr, _ := h.registry.Get("scr-1")
	scr.Session.Close() //nolint:errcheck

	if result := scr.Session.SendJSON(pongMsg{Type: "pong"}); result != screen.Failed {
		t.Errorf("SendJSON on closed session = %v, want Failed", result)
	}
}
