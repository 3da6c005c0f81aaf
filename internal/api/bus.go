package api

import (
	"errors"
	"net/http"

	"github.com/marchog/ops-core/internal/bus"
)

// handleBusStatus reports the bridge's broker connection state.
func (s *Server) handleBusStatus(w http.ResponseWriter, _ *http.Request) {
	if s.bus == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"connected":    false,
			"broker":       "",
			"topic_prefix": s.topicPrefix,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":    s.bus.Connected(),
		"broker":       s.bus.Broker(),
		"topic_prefix": s.topicPrefix,
	})
}

type busPublishRequest struct {
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload"`
	Retain  bool           `json:"retain"`
}

// handleBusPublish publishes an arbitrary message to the bus, mainly for
// testing topic wiring.
func (s *Server) handleBusPublish(w http.ResponseWriter, r *http.Request) {
	var req busPublishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeBadRequest(w, "topic required")
		return
	}
	if s.bus == nil {
		writeInternalError(w, "bus unavailable")
		return
	}

	if err := s.bus.Publish(req.Topic, req.Payload, req.Retain); err != nil {
		switch {
		case errors.Is(err, bus.ErrNotConnected):
			writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "topic": req.Topic})
		case errors.Is(err, bus.ErrInvalidTopic):
			writeBadRequest(w, "invalid topic")
		default:
			writeInternalError(w, "failed to publish")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "published", "topic": req.Topic})
}
