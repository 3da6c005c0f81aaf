package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marchog/ops-core/internal/infrastructure/config"
	"github.com/marchog/ops-core/internal/screen"
)

// session is one live screen connection. It implements screen.Session.
//
// Sends go through a buffered channel drained by writePump; SendJSON never
// blocks and never writes to the connection directly.
type session struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, sendBuffer int) *session {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &session{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// SendJSON enqueues v for delivery. Failed means the session is closed or
// its buffer is full; the normal disconnect path cleans up either way.
func (s *session) SendJSON(v any) screen.SendResult {
	data, err := json.Marshal(v)
	if err != nil {
		return screen.Failed
	}

	select {
	case <-s.done:
		return screen.Failed
	default:
	}

	select {
	case s.send <- data:
		return screen.Delivered
	default:
		return screen.Failed
	}
}

// Close tears the connection down. Safe to call more than once and from
// any goroutine.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return s.conn.Close()
}

// writePump drains the send channel onto the connection and keeps it alive
// with protocol-level pings. It exits when the session closes or a write
// fails, closing the connection so readPump unblocks.
func (s *session) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close() //nolint:errcheck // Best-effort teardown
	}()

	for {
		select {
		case <-s.done:
			//nolint:errcheck // Best-effort close message
			s.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case data := <-s.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
