package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marchog/ops-core/internal/scene"
)

type sceneRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// sceneDetail is a scene plus every screen config it carries.
type sceneDetail struct {
	scene.Scene
	Screens []scene.ScreenConfig `json:"screens"`
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.sceneRepo.ListScenes(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list scenes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

func (s *Server) handleActiveScene(w http.ResponseWriter, r *http.Request) {
	active, err := s.sceneRepo.ActiveScene(r.Context())
	if err != nil {
		if errors.Is(err, scene.ErrNoActiveScene) {
			writeNotFound(w, "no active scene")
			return
		}
		writeInternalError(w, "failed to resolve active scene")
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" {
		writeBadRequest(w, "id and name are required")
		return
	}

	sc := &scene.Scene{ID: req.ID, Name: req.Name, Description: req.Description}
	if err := s.sceneRepo.CreateScene(r.Context(), sc); err != nil {
		writeInternalError(w, "failed to create scene")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "id": req.ID})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	sc, err := s.sceneRepo.GetScene(ctx, id)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		writeInternalError(w, "failed to get scene")
		return
	}

	configs, err := s.sceneRepo.ResolveSceneConfigs(ctx, id)
	if err != nil {
		writeInternalError(w, "failed to load screen configs")
		return
	}
	writeJSON(w, http.StatusOK, sceneDetail{Scene: *sc, Screens: configs})
}

// handleActivateScene makes the scene active and pushes its assignments
// to every connected screen.
func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.sceneEngine == nil {
		writeInternalError(w, "scene activation unavailable")
		return
	}

	delivered, err := s.sceneEngine.Activate(r.Context(), id)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		writeInternalError(w, "failed to activate scene")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "activated", "scene_id": id, "pushed": delivered,
	})
}

func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sceneRepo.DeleteScene(r.Context(), id); err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		writeInternalError(w, "failed to delete scene")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// handleSetScreenConfig upserts a screen's config within a scene. When
// the scene is active the new config is pushed to the screen immediately.
func (s *Server) handleSetScreenConfig(w http.ResponseWriter, r *http.Request) {
	sceneID := chi.URLParam(r, "id")
	screenID := chi.URLParam(r, "screenID")
	ctx := r.Context()

	var cfg scene.ScreenConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	cfg.ScreenID = screenID
	if err := cfg.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if _, err := s.sceneRepo.GetScene(ctx, sceneID); err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		writeInternalError(w, "failed to get scene")
		return
	}

	if err := s.sceneRepo.SetScreenConfig(ctx, sceneID, &cfg); err != nil {
		writeInternalError(w, "failed to set screen config")
		return
	}

	if s.pusher != nil {
		active, err := s.sceneRepo.ActiveScene(ctx)
		if err == nil && active.ID == sceneID {
			s.pusher.SendAssignment(screenID, &cfg)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (s *Server) handleDeleteScreenConfig(w http.ResponseWriter, r *http.Request) {
	sceneID := chi.URLParam(r, "id")
	screenID := chi.URLParam(r, "screenID")

	if err := s.sceneRepo.DeleteScreenConfig(r.Context(), sceneID, screenID); err != nil {
		if errors.Is(err, scene.ErrConfigNotFound) {
			writeNotFound(w, "screen config not found")
			return
		}
		writeInternalError(w, "failed to remove screen config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}
