package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Screens connect here; everything else is the management API.
	if s.screenWS != nil {
		r.Get("/ws/screen/{screenID}", s.screenWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/health/screens", s.handleScreensHealth)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", s.handleListRooms)
			r.Post("/", s.handleCreateRoom)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRoom)
				r.Put("/", s.handleUpdateRoom)
				r.Delete("/", s.handleDeleteRoom)
			})
		})

		r.Route("/zones", func(r chi.Router) {
			r.Post("/", s.handleCreateZone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetZone)
				r.Put("/", s.handleUpdateZone)
				r.Delete("/", s.handleDeleteZone)
				r.Get("/screens", s.handleZoneScreens)
				r.Post("/screens", s.handleAssignScreenToZone)
				r.Delete("/screens/{screenID}", s.handleUnassignScreenFromZone)
			})
		})

		r.Get("/device-types", s.handleDeviceTypes)

		r.Route("/pages", func(r chi.Router) {
			r.Get("/", s.handleListPages)
			r.Post("/", s.handleCreatePage)
			r.Post("/scan", s.handleScanPages)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPage)
				r.Put("/", s.handleUpdatePage)
				r.Delete("/", s.handleDeletePage)
			})
		})

		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", s.handleListScenes)
			r.Post("/", s.handleCreateScene)
			r.Get("/active", s.handleActiveScene)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetScene)
				r.Delete("/", s.handleDeleteScene)
				r.Post("/activate", s.handleActivateScene)
				r.Put("/screens/{screenID}", s.handleSetScreenConfig)
				r.Delete("/screens/{screenID}", s.handleDeleteScreenConfig)
			})
		})

		r.Route("/screens", func(r chi.Router) {
			r.Get("/", s.handleListScreens)
			r.Post("/{id}/navigate", s.handleNavigateScreen)
			r.Patch("/{id}/device-type", s.handleUpdateDeviceType)
		})

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleListAutomations)
			r.Post("/", s.handleCreateAutomation)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", s.handleUpdateAutomation)
				r.Delete("/", s.handleDeleteAutomation)
				r.Post("/run", s.handleRunAutomation)
			})
		})

		r.Route("/bus", func(r chi.Router) {
			r.Get("/status", s.handleBusStatus)
			r.Post("/publish", s.handleBusPublish)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
