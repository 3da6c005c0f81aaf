package screen

import (
	"sync"
	"time"

	"github.com/marchog/ops-core/internal/routing"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the synchronized table of connected screens.
//
// All public methods are thread-safe. The Registry owns session lifetimes:
// a Register for an id already present replaces the prior entry, and the
// superseded session never receives further deliveries through the Registry.
type Registry struct {
	mu      sync.RWMutex
	screens map[string]*Screen
	logger  Logger
}

// NewRegistry creates an empty screen registry.
func NewRegistry() *Registry {
	return &Registry{
		screens: make(map[string]*Screen),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds a screen with the given session, replacing any prior entry
// for the same id. It returns the superseded session, if any, so the caller
// can close it.
func (r *Registry) Register(id string, sess Session) Session {
	now := time.Now().UTC()

	r.mu.Lock()
	var prior Session
	if existing, ok := r.screens[id]; ok {
		prior = existing.Session
	}
	r.screens[id] = &Screen{
		ID:            id,
		Session:       sess,
		PlaylistIndex: -1,
		ConnectedAt:   now,
	}
	r.mu.Unlock()

	if prior != nil {
		r.logger.Info("screen session replaced", "screen_id", id)
	} else {
		r.logger.Info("screen registered", "screen_id", id)
	}
	return prior
}

// Release removes the screen only if it still holds the given session.
// It reports whether the entry was removed.
//
// Disconnect paths use Release rather than Unregister so that cleanup of a
// dead session cannot evict the new entry of a screen that has already
// reconnected.
func (r *Registry) Release(id string, sess Session) bool {
	r.mu.Lock()
	existing, ok := r.screens[id]
	if !ok || existing.Session != sess {
		r.mu.Unlock()
		return false
	}
	delete(r.screens, id)
	r.mu.Unlock()

	r.logger.Info("screen unregistered", "screen_id", id)
	return true
}

// Unregister removes the screen unconditionally.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, ok := r.screens[id]
	delete(r.screens, id)
	r.mu.Unlock()

	if ok {
		r.logger.Info("screen unregistered", "screen_id", id)
	}
}

// Get returns a snapshot of the screen's entry.
func (r *Registry) Get(id string) (Screen, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.screens[id]
	if !ok {
		return Screen{}, false
	}
	return *s, true
}

// All returns a snapshot of every connected screen.
func (r *Registry) All() []Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()

	screens := make([]Screen, 0, len(r.screens))
	for _, s := range r.screens {
		screens = append(screens, *s)
	}
	return screens
}

// Count returns the number of connected screens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.screens)
}

// SetMeta replaces the routing metadata for a connected screen.
func (r *Registry) SetMeta(id string, meta routing.Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.screens[id]; ok {
		s.Meta = meta
	}
}

// TouchLastSeen records a liveness signal from the screen.
func (r *Registry) TouchLastSeen(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.screens[id]; ok {
		s.LastSeen = time.Now().UTC()
	}
}

// SetCurrentPage records the page the screen reports showing and counts as
// a liveness signal.
func (r *Registry) SetCurrentPage(id, page string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.screens[id]; ok {
		s.CurrentPage = page
		s.LastSeen = time.Now().UTC()
	}
}

// SetPlaylistIndex records the screen's reported playlist position.
func (r *Registry) SetPlaylistIndex(id string, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.screens[id]; ok {
		s.PlaylistIndex = index
	}
}

// Send delivers v to the screen's current session. If no session is
// registered for the id this is a silent no-op reported as NoSession.
func (r *Registry) Send(id string, v any) SendResult {
	r.mu.RLock()
	s, ok := r.screens[id]
	var sess Session
	if ok {
		sess = s.Session
	}
	r.mu.RUnlock()

	if sess == nil {
		return NoSession
	}
	result := sess.SendJSON(v)
	if result == Failed {
		r.logger.Warn("send to screen failed", "screen_id", id)
	}
	return result
}

// Matching returns a snapshot of every screen the topic addresses.
func (r *Registry) Matching(topic string) []Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Screen
	for _, s := range r.screens {
		if routing.Matches(topic, s.ID, s.Meta) {
			matched = append(matched, *s)
		}
	}
	return matched
}
