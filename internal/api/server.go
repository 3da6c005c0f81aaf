// Package api provides the HTTP REST API for the screen coordination core.
//
// It exposes room, zone, page, scene, and automation management, live
// screen inspection, and the websocket endpoint screens connect to.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marchog/ops-core/internal/automation"
	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/infrastructure/logging"
	"github.com/marchog/ops-core/internal/location"
	"github.com/marchog/ops-core/internal/page"
	"github.com/marchog/ops-core/internal/scene"
	"github.com/marchog/ops-core/internal/screen"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultStaleThreshold mirrors the health monitor default for the
// screens health report.
const defaultStaleThreshold = 90 * time.Second

// Bus is the bridge surface the API needs: status reporting, test
// publishes, and assignment pushes rely on nothing else.
type Bus interface {
	Connected() bool
	Broker() string
	Publish(topic string, payload map[string]any, retained bool) error
}

// ScreenNavigator delivers a navigate command to a connected screen.
// Satisfied by the websocket gateway.
type ScreenNavigator interface {
	SendNavigate(screenID, page string, params map[string]any) screen.SendResult
}

// AssignmentPusher pushes a screen's config over its connection.
// Satisfied by the websocket gateway.
type AssignmentPusher interface {
	SendAssignment(screenID string, cfg *scene.ScreenConfig) screen.SendResult
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config         config.APIConfig
	Logger         *logging.Logger
	Registry       *screen.Registry
	Gateway        ScreenNavigator
	Pusher         AssignmentPusher
	ScreenWS       http.HandlerFunc // handler for /ws/screen/{screenID}
	Bus            Bus
	TopicPrefix    string
	SceneRepo      scene.Repository
	SceneEngine    *scene.Engine
	LocationRepo   location.Repository
	PageRepo       page.Repository
	PagesDir       string
	AutomationRepo automation.Repository
	Runner         *automation.Runner
	StaleThreshold time.Duration
	Version        string
}

// Server is the HTTP API server.
type Server struct {
	cfg            config.APIConfig
	logger         *logging.Logger
	registry       *screen.Registry
	gateway        ScreenNavigator
	pusher         AssignmentPusher
	screenWS       http.HandlerFunc
	bus            Bus
	topicPrefix    string
	sceneRepo      scene.Repository
	sceneEngine    *scene.Engine
	locationRepo   location.Repository
	pageRepo       page.Repository
	pagesDir       string
	automationRepo automation.Repository
	runner         *automation.Runner
	staleThreshold time.Duration
	version        string

	server *http.Server
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("screen registry is required")
	}

	staleThreshold := deps.StaleThreshold
	if staleThreshold <= 0 {
		staleThreshold = defaultStaleThreshold
	}

	return &Server{
		cfg:            deps.Config,
		logger:         deps.Logger,
		registry:       deps.Registry,
		gateway:        deps.Gateway,
		pusher:         deps.Pusher,
		screenWS:       deps.ScreenWS,
		bus:            deps.Bus,
		topicPrefix:    deps.TopicPrefix,
		sceneRepo:      deps.SceneRepo,
		sceneEngine:    deps.SceneEngine,
		locationRepo:   deps.LocationRepo,
		pageRepo:       deps.PageRepo,
		pagesDir:       deps.PagesDir,
		automationRepo: deps.AutomationRepo,
		runner:         deps.Runner,
		staleThreshold: staleThreshold,
		version:        deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
