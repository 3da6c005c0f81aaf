package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marchog/ops-core/internal/automation"
)

type automationCreate struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Enabled     *bool               `json:"enabled"`
	Actions     []automation.Action `json:"actions"`
}

type automationUpdate struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Icon        *string              `json:"icon"`
	Enabled     *bool                `json:"enabled"`
	Actions     *[]automation.Action `json:"actions"`
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	autos, err := s.automationRepo.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list automations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"automations": autos, "count": len(autos)})
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationCreate
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" {
		writeBadRequest(w, "id and name are required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	auto := &automation.Automation{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Enabled:     enabled,
		Actions:     req.Actions,
	}
	if err := s.automationRepo.Create(r.Context(), auto); err != nil {
		writeInternalError(w, "failed to create automation")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "id": req.ID})
}

// handleUpdateAutomation applies a partial update; omitted fields keep
// their stored values.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req automationUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	auto, err := s.automationRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to get automation")
		return
	}

	if req.Name != nil {
		auto.Name = *req.Name
	}
	if req.Description != nil {
		auto.Description = *req.Description
	}
	if req.Icon != nil {
		auto.Icon = *req.Icon
	}
	if req.Enabled != nil {
		auto.Enabled = *req.Enabled
	}
	if req.Actions != nil {
		auto.Actions = *req.Actions
	}

	if err := s.automationRepo.Update(ctx, auto); err != nil {
		writeInternalError(w, "failed to update automation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "id": id})
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.automationRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to delete automation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// handleRunAutomation executes an automation and reports the per-target
// outcomes.
func (s *Server) handleRunAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.runner == nil {
		writeInternalError(w, "automation execution unavailable")
		return
	}

	results, err := s.runner.Run(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, automation.ErrNotFound):
			writeNotFound(w, "automation not found")
		case errors.Is(err, automation.ErrDisabled):
			writeBadRequest(w, "automation is disabled")
		default:
			writeInternalError(w, "failed to run automation")
		}
		return
	}
	if results == nil {
		results = []automation.TargetResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "executed", "automation": id, "results": results,
	})
}
