package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marchog/ops-core/internal/scene"
	"github.com/marchog/ops-core/internal/screen"
)

// handleListScreens returns every connected screen and what it is showing.
func (s *Server) handleListScreens(w http.ResponseWriter, _ *http.Request) {
	screens := s.registry.All()
	out := make([]map[string]any, 0, len(screens))
	for _, scr := range screens {
		out = append(out, map[string]any{
			"screen_id":      scr.ID,
			"page":           scr.CurrentPage,
			"playlist_index": scr.PlaylistIndex,
			"connected_at":   scr.ConnectedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"screens": out, "count": len(out)})
}

type navigateRequest struct {
	Page   string         `json:"page"`
	Params map[string]any `json:"params"`
}

// handleNavigateScreen sends a navigate command to one connected screen.
func (s *Server) handleNavigateScreen(w http.ResponseWriter, r *http.Request) {
	screenID := chi.URLParam(r, "id")

	var req navigateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Page == "" {
		writeBadRequest(w, "page is required")
		return
	}
	if s.gateway == nil {
		writeInternalError(w, "navigation unavailable")
		return
	}

	switch s.gateway.SendNavigate(screenID, req.Page, req.Params) {
	case screen.Delivered:
		writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "page": req.Page})
	case screen.NoSession:
		writeNotFound(w, "screen not connected")
	default:
		writeInternalError(w, "failed to send navigate")
	}
}

type deviceTypeRequest struct {
	DeviceType          string  `json:"device_type"`
	DeviceTypeSecondary *string `json:"device_type_secondary"`
}

// handleUpdateDeviceType changes a screen's device types in the active scene.
func (s *Server) handleUpdateDeviceType(w http.ResponseWriter, r *http.Request) {
	screenID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req deviceTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.DeviceType == "" {
		req.DeviceType = scene.DefaultDeviceType
	}

	active, err := s.sceneRepo.ActiveScene(ctx)
	if err != nil {
		if errors.Is(err, scene.ErrNoActiveScene) {
			writeBadRequest(w, "no active scene")
			return
		}
		writeInternalError(w, "failed to resolve active scene")
		return
	}

	if err := s.sceneRepo.SetScreenDeviceTypes(ctx, active.ID, screenID, req.DeviceType, req.DeviceTypeSecondary); err != nil {
		writeInternalError(w, "failed to update device type")
		return
	}

	// Keep the live routing metadata in step with the store.
	if scr, ok := s.registry.Get(screenID); ok {
		meta := scr.Meta
		meta.DeviceType = req.DeviceType
		meta.DeviceTypeSecondary = ""
		if req.DeviceTypeSecondary != nil {
			meta.DeviceTypeSecondary = *req.DeviceTypeSecondary
		}
		s.registry.SetMeta(screenID, meta)
	}

	resp := map[string]any{
		"status": "updated", "screen_id": screenID, "device_type": req.DeviceType,
	}
	if req.DeviceTypeSecondary != nil {
		resp["device_type_secondary"] = *req.DeviceTypeSecondary
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeviceTypes returns the device type taxonomy.
func (s *Server) handleDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DeviceTypes)
}

// handleScreensHealth reports the liveness of every connected screen.
func (s *Server) handleScreensHealth(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	screens := s.registry.All()
	out := make([]map[string]any, 0, len(screens))
	for _, scr := range screens {
		entry := map[string]any{
			"screen_id":             scr.ID,
			"status":                "online",
			"page":                  scr.CurrentPage,
			"connected_at":          scr.ConnectedAt,
			"uptime_seconds":        int(now.Sub(scr.ConnectedAt).Seconds()),
			"device_type":           scr.Meta.DeviceType,
			"device_type_secondary": scr.Meta.DeviceTypeSecondary,
			"zone_id":               scr.Meta.ZoneID,
			"room_id":               scr.Meta.RoomID,
		}
		if !scr.LastSeen.IsZero() {
			ago := now.Sub(scr.LastSeen)
			entry["last_seen"] = scr.LastSeen
			entry["last_seen_ago_seconds"] = int(ago.Seconds())
			if ago > s.staleThreshold {
				entry["status"] = "stale"
			}
		}
		out = append(out, entry)
	}

	busConnected := false
	if s.bus != nil {
		busConnected = s.bus.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_connected": len(screens),
		"mqtt_connected":  busConnected,
		"screens":         out,
	})
}
