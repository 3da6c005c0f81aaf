package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marchog/ops-core/internal/location"
	"github.com/marchog/ops-core/internal/scene"
)

type roomRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// zoneWithScreens is a zone plus the screens the active scene assigns
// to it, each flagged with live connection state.
type zoneWithScreens struct {
	location.Zone
	Screens []assignedScreen `json:"screens"`
}

type roomWithScreens struct {
	location.Room
	Zones []zoneWithScreens `json:"zones"`
}

type assignedScreen struct {
	scene.ScreenConfig
	Connected bool `json:"connected"`
}

// handleListRooms returns all rooms with their zones. By default each
// zone carries the screens the active scene assigns to it; pass
// include_screens=false for the bare hierarchy.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rooms, err := s.locationRepo.ListRoomsWithZones(ctx)
	if err != nil {
		writeInternalError(w, "failed to list rooms")
		return
	}

	if r.URL.Query().Get("include_screens") == "false" {
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
		return
	}

	byZone, err := s.activeConfigsByZone(r)
	if err != nil {
		writeInternalError(w, "failed to resolve screen assignments")
		return
	}

	out := make([]roomWithScreens, 0, len(rooms))
	for _, room := range rooms {
		rw := roomWithScreens{Room: room.Room, Zones: make([]zoneWithScreens, 0, len(room.Zones))}
		for _, zone := range room.Zones {
			zw := zoneWithScreens{Zone: zone, Screens: []assignedScreen{}}
			for _, cfg := range byZone[zone.ID] {
				_, connected := s.registry.Get(cfg.ScreenID)
				zw.Screens = append(zw.Screens, assignedScreen{ScreenConfig: cfg, Connected: connected})
			}
			rw.Zones = append(rw.Zones, zw)
		}
		out = append(out, rw)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": out, "count": len(out)})
}

// activeConfigsByZone groups the active scene's screen configs by zone.
// A missing active scene yields an empty map, not an error.
func (s *Server) activeConfigsByZone(r *http.Request) (map[string][]scene.ScreenConfig, error) {
	ctx := r.Context()
	active, err := s.sceneRepo.ActiveScene(ctx)
	if err != nil {
		if errors.Is(err, scene.ErrNoActiveScene) {
			return map[string][]scene.ScreenConfig{}, nil
		}
		return nil, err
	}
	configs, err := s.sceneRepo.ResolveSceneConfigs(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	byZone := make(map[string][]scene.ScreenConfig)
	for _, cfg := range configs {
		if cfg.ZoneID != "" {
			byZone[cfg.ZoneID] = append(byZone[cfg.ZoneID], cfg)
		}
	}
	return byZone, nil
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" {
		writeBadRequest(w, "id and name are required")
		return
	}

	room := &location.Room{ID: req.ID, Name: req.Name, Description: req.Description, Icon: req.Icon}
	if err := s.locationRepo.CreateRoom(r.Context(), room); err != nil {
		writeInternalError(w, "failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "id": req.ID})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	room, err := s.locationRepo.GetRoom(ctx, id)
	if err != nil {
		if errors.Is(err, location.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to get room")
		return
	}

	zones, err := s.locationRepo.ListZonesByRoom(ctx, id)
	if err != nil {
		writeInternalError(w, "failed to list zones")
		return
	}
	writeJSON(w, http.StatusOK, location.RoomWithZones{Room: *room, Zones: zones})
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	room := &location.Room{ID: id, Name: req.Name, Description: req.Description, Icon: req.Icon}
	if err := s.locationRepo.UpdateRoom(r.Context(), room); err != nil {
		if errors.Is(err, location.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to update room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.locationRepo.DeleteRoom(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, location.ErrRoomNotFound):
			writeNotFound(w, "room not found")
		case errors.Is(err, location.ErrRoomHasZones):
			writeConflict(w, "room still has zones")
		default:
			writeInternalError(w, "failed to delete room")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

type zoneRequest struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.RoomID == "" || req.Name == "" {
		writeBadRequest(w, "id, room_id and name are required")
		return
	}

	zone := &location.Zone{ID: req.ID, RoomID: req.RoomID, Name: req.Name, Description: req.Description, Icon: req.Icon}
	if err := s.locationRepo.CreateZone(r.Context(), zone); err != nil {
		if errors.Is(err, location.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		writeInternalError(w, "failed to create zone")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "id": req.ID})
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	zone, err := s.locationRepo.GetZone(r.Context(), id)
	if err != nil {
		if errors.Is(err, location.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to get zone")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req zoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	zone := &location.Zone{ID: id, Name: req.Name, Description: req.Description, Icon: req.Icon}
	if err := s.locationRepo.UpdateZone(r.Context(), zone); err != nil {
		if errors.Is(err, location.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to update zone")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.locationRepo.DeleteZone(r.Context(), id); err != nil {
		if errors.Is(err, location.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to delete zone")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// handleZoneScreens returns the screens the active scene assigns to a zone.
func (s *Server) handleZoneScreens(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	byZone, err := s.activeConfigsByZone(r)
	if err != nil {
		writeInternalError(w, "failed to resolve screen assignments")
		return
	}

	screens := []assignedScreen{}
	for _, cfg := range byZone[id] {
		_, connected := s.registry.Get(cfg.ScreenID)
		screens = append(screens, assignedScreen{ScreenConfig: cfg, Connected: connected})
	}
	writeJSON(w, http.StatusOK, map[string]any{"screens": screens, "count": len(screens)})
}

type zoneScreenAssign struct {
	ScreenID            string         `json:"screen_id"`
	PageID              string         `json:"page_id"`
	Label               string         `json:"label"`
	ParamsOverride      map[string]any `json:"params_override"`
	DeviceType          string         `json:"device_type"`
	DeviceTypeSecondary string         `json:"device_type_secondary"`
}

// handleAssignScreenToZone places a screen in a zone within the active
// scene and pushes the updated assignment if the screen is connected.
func (s *Server) handleAssignScreenToZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req zoneScreenAssign
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ScreenID == "" {
		writeBadRequest(w, "screen_id is required")
		return
	}

	if _, err := s.locationRepo.GetZone(ctx, zoneID); err != nil {
		if errors.Is(err, location.ErrZoneNotFound) {
			writeNotFound(w, "zone not found")
			return
		}
		writeInternalError(w, "failed to get zone")
		return
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

	cfg := &scene.ScreenConfig{
		ScreenID:            req.ScreenID,
		Label:               req.Label,
		Mode:                scene.ModeStatic,
		StaticPage:          req.PageID,
		ZoneID:              zoneID,
		DeviceType:          req.DeviceType,
		DeviceTypeSecondary: req.DeviceTypeSecondary,
		ParamsOverride:      req.ParamsOverride,
	}
	if err := cfg.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.sceneRepo.SetScreenConfig(ctx, active.ID, cfg); err != nil {
		writeInternalError(w, "failed to assign screen")
		return
	}

	if s.pusher != nil {
		s.pusher.SendAssignment(req.ScreenID, cfg)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "assigned", "screen_id": req.ScreenID, "zone_id": zoneID,
	})
}

// handleUnassignScreenFromZone clears a screen's zone in the active scene.
func (s *Server) handleUnassignScreenFromZone(w http.ResponseWriter, r *http.Request) {
	screenID := chi.URLParam(r, "screenID")
	ctx := r.Context()

	active, err := s.sceneRepo.ActiveScene(ctx)
	if err != nil {
		if errors.Is(err, scene.ErrNoActiveScene) {
			writeBadRequest(w, "no active scene")
			return
		}
		writeInternalError(w, "failed to resolve active scene")
		return
	}

	if err := s.sceneRepo.SetScreenZone(ctx, active.ID, screenID, nil); err != nil {
		writeInternalError(w, "failed to unassign screen")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "unassigned", "screen_id": screenID})
}
