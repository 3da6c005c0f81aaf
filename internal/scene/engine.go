package scene

import (
	"context"
	"fmt"

	"github.com/marchog/ops-core/internal/screen"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AssignmentPusher delivers a new assignment to a connected screen. The
// session gateway implements this; a NoSession result means the screen will
// pick up the assignment on its next connect.
type AssignmentPusher interface {
	SendAssignment(screenID string, cfg *ScreenConfig) screen.SendResult
}

// EventPublisher announces scene activations on the bus. Best-effort: a
// disconnected bus is not an activation failure.
type EventPublisher interface {
	PublishSceneActivated(sceneID string) error
}

// Engine coordinates scene activation: it flips the active scene in the
// store, then pushes the new assignments to every connected screen that has
// one.
type Engine struct {
	repo   Repository
	pusher AssignmentPusher
	events EventPublisher
	logger Logger
}

// NewEngine creates a scene engine. events may be nil when no bus is wired.
func NewEngine(repo Repository, pusher AssignmentPusher, events EventPublisher) *Engine {
	return &Engine{
		repo:   repo,
		pusher: pusher,
		events: events,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Activate makes the scene active and pushes each of its screen configs to
// the matching connected screen. Screens without a live session are skipped
// silently; they resolve the new assignment on their next handshake.
//
// Returns the number of assignments delivered.
func (e *Engine) Activate(ctx context.Context, sceneID string) (int, error) {
	if err := e.repo.ActivateScene(ctx, sceneID); err != nil {
		return 0, fmt.Errorf("activating scene %s: %w", sceneID, err)
	}

	configs, err := e.repo.ResolveSceneConfigs(ctx, sceneID)
	if err != nil {
		return 0, fmt.Errorf("resolving configs for scene %s: %w", sceneID, err)
	}

	delivered := 0
	for i := range configs {
		cfg := configs[i]
		switch result := e.pusher.SendAssignment(cfg.ScreenID, &cfg); result {
		case screen.Delivered:
			delivered++
		case screen.Failed:
			e.logger.Warn("assignment push failed",
				"scene_id", sceneID, "screen_id", cfg.ScreenID)
		case screen.NoSession:
			// Delivered on next connect
		}
	}

	if e.events != nil {
		if err := e.events.PublishSceneActivated(sceneID); err != nil {
			e.logger.Warn("scene activation event not published",
				"scene_id", sceneID, "error", err)
		}
	}

	e.logger.Info("scene activated",
		"scene_id", sceneID, "configs", len(configs), "delivered", delivered)
	return delivered, nil
}
