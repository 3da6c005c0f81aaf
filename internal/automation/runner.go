package automation

import (
	"context"
	"fmt"

	"github.com/marchog/ops-core/internal/screen"
)

// NavigatePublisher fans navigate commands out over the bus. Satisfied by
// the bus bridge.
type NavigatePublisher interface {
	Connected() bool
	PublishNavigate(targets []string, pageID string, params map[string]any, source string) error
}

// DirectSender delivers a navigate straight to a connected screen.
// Satisfied by the websocket gateway.
type DirectSender interface {
	SendNavigate(screenID, page string, params map[string]any) screen.SendResult
}

type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// TargetResult records the outcome for one action target.
type TargetResult struct {
	Screen  string   `json:"screen,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Status  string   `json:"status"`
	Via     string   `json:"via,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Runner executes stored automations.
type Runner struct {
	repo   Repository
	bus    NavigatePublisher
	direct DirectSender
	logger Logger
}

func NewRunner(repo Repository, bus NavigatePublisher, direct DirectSender) *Runner {
	return &Runner{
		repo:   repo,
		bus:    bus,
		direct: direct,
		logger: noopLogger{},
	}
}

func (r *Runner) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run executes an automation's navigate actions against their bus and
// direct targets. Actions of other types are skipped. Per-target failures
// are reported in the results, not as an error.
func (r *Runner) Run(ctx context.Context, id string) ([]TargetResult, error) {
	auto, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auto.Enabled {
		return nil, fmt.Errorf("automation %s: %w", id, ErrDisabled)
	}

	source := "automation:" + id
	var results []TargetResult
	for _, action := range auto.Actions {
		if action.Type != "navigate" {
			continue
		}

		if len(action.PublishTo) > 0 {
			if r.bus != nil && r.bus.Connected() {
				if err := r.bus.PublishNavigate(action.PublishTo, action.PageID, action.Params, source); err != nil {
					r.logger.Warn("automation bus publish failed",
						"automation_id", id, "error", err)
					results = append(results, TargetResult{
						Targets: action.PublishTo, Status: "error", Via: "mqtt", Error: err.Error(),
					})
				} else {
					results = append(results, TargetResult{
						Targets: action.PublishTo, Status: "published", Via: "mqtt",
					})
				}
			} else {
				results = append(results, TargetResult{
					Targets: action.PublishTo, Status: "bus_offline", Via: "mqtt",
				})
			}
		}

		for _, screenID := range action.Targets {
			switch r.direct.SendNavigate(screenID, action.PageID, action.Params) {
			case screen.Delivered:
				results = append(results, TargetResult{Screen: screenID, Status: "sent", Via: "ws"})
			case screen.NoSession:
				results = append(results, TargetResult{Screen: screenID, Status: "not_connected"})
			default:
				results = append(results, TargetResult{Screen: screenID, Status: "error", Via: "ws"})
			}
		}
	}

	r.logger.Info("automation executed", "automation_id", id, "results", len(results))
	return results, nil
}
