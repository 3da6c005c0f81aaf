package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marchog/ops-core/internal/page"
)

type pageRequest struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	File        string         `json:"file"`
	Icon        string         `json:"icon"`
	Category    string         `json:"category"`
	Params      map[string]any `json:"params"`
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.pageRepo.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list pages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages, "count": len(pages)})
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" || req.File == "" {
		writeBadRequest(w, "id, name and file are required")
		return
	}

	p := &page.Page{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		File:        req.File,
		Icon:        req.Icon,
		Category:    req.Category,
		Params:      req.Params,
	}
	if err := s.pageRepo.Create(r.Context(), p); err != nil {
		writeInternalError(w, "failed to create page")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "id": req.ID})
}

// handleScanPages registers any page files added since the last scan.
func (s *Server) handleScanPages(w http.ResponseWriter, r *http.Request) {
	if s.pagesDir == "" {
		writeBadRequest(w, "no pages directory configured")
		return
	}

	discovered, err := s.pageRepo.Scan(r.Context(), s.pagesDir)
	if err != nil {
		writeInternalError(w, "failed to scan pages")
		return
	}
	if discovered == nil {
		discovered = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "scanned", "discovered": discovered})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.pageRepo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, page.ErrPageNotFound) {
			writeNotFound(w, "page not found")
			return
		}
		writeInternalError(w, "failed to get page")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	existing, err := s.pageRepo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, page.ErrPageNotFound) {
			writeNotFound(w, "page not found")
			return
		}
		writeInternalError(w, "failed to get page")
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.Icon != "" {
		existing.Icon = req.Icon
	}
	if req.Category != "" {
		existing.Category = req.Category
	}
	if req.Params != nil {
		existing.Params = req.Params
	}
	if err := s.pageRepo.Update(r.Context(), existing); err != nil {
		writeInternalError(w, "failed to update page")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.pageRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, page.ErrPageNotFound) {
			writeNotFound(w, "page not found")
			return
		}
		writeInternalError(w, "failed to delete page")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
