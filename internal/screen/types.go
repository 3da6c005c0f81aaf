package screen

import (
	"time"

	"github.com/marchog/ops-core/internal/routing"
)

// SendResult is the outcome of an attempted delivery to a screen. Sends are
// best-effort: callers that do not care may discard the result.
type SendResult int

const (
	// Delivered means the message was handed to the session for transmission.
	Delivered SendResult = iota

	// NoSession means no session is registered for the screen id.
	NoSession

	// Failed means the session rejected the message (closed or backed up).
	Failed
)

// String returns the result name for logging.
func (r SendResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NoSession:
		return "no-session"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Session is a live connection to a screen. Implementations must make
// SendJSON safe to call from any goroutine and non-blocking: a session that
// cannot accept the message returns Failed rather than stalling the caller.
type Session interface {
	// SendJSON enqueues v for delivery as a JSON message.
	SendJSON(v any) SendResult

	// Close tears down the underlying connection.
	Close() error
}

// Screen is a snapshot of a connected screen's registry entry.
type Screen struct {
	// ID is the screen identifier from the connection handshake.
	ID string

	// Session is the live connection handle.
	Session Session

	// Meta is the routing metadata resolved from the screen's assignment.
	Meta routing.Meta

	// CurrentPage is the page the screen last reported showing.
	CurrentPage string

	// PlaylistIndex is the screen's reported position within an active
	// playlist. -1 when the screen has not reported one.
	PlaylistIndex int

	// ConnectedAt is when the current session registered.
	ConnectedAt time.Time

	// LastSeen is the last liveness signal from the screen. Zero until the
	// screen first reports.
	LastSeen time.Time
}
