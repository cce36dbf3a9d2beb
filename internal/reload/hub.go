// Package reload pushes build results to connected browsers over WebSocket.
package reload

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/loom-dev/loom/internal/metrics"
)

// DirectiveKind is the closed set of browser instructions.
type DirectiveKind string

const (
	// KindReload tells the browser to reload the page.
	KindReload DirectiveKind = "reload"

	// KindStyle tells the browser to swap stylesheets without reloading.
	KindStyle DirectiveKind = "style"
)

// Directive is the JSON message sent to browsers.
type Directive struct {
	Kind DirectiveKind `json:"kind"`
	Path string        `json:"path,omitempty"`
}

// writeWait bounds how long a broadcast blocks on one slow session.
const writeWait = 2 * time.Second

// Session is one connected browser.
type Session struct {
	ID   uuid.UUID
	conn *websocket.Conn
}

// Hub tracks browser sessions and broadcasts directives to them. Delivery
// is best effort; a session that cannot be written to is dropped, never the
// broadcast.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dev server, all origins fine
			},
		},
	}
}

// ServeHTTP upgrades the connection and keeps the session registered until
// the browser disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s := &Session{ID: uuid.New(), conn: conn}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	metrics.ReloadSessions.Inc()
	slog.Debug("reload session connected", "session", s.ID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(s)
}

func (h *Hub) drop(s *Session) {
	h.mu.Lock()
	_, present := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()

	if present {
		metrics.ReloadSessions.Dec()
		slog.Debug("reload session disconnected", "session", s.ID)
	}
	s.conn.Close()
}

// Broadcast sends d to every session. A failed or timed-out write drops
// only that session.
func (h *Hub) Broadcast(d Directive) {
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	metrics.ReloadBroadcasts.WithLabelValues(string(d.Kind)).Inc()

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("dropping unreachable reload session", "session", s.ID, "error", err)
			h.drop(s)
		}
	}
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[uuid.UUID]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		metrics.ReloadSessions.Dec()
		s.conn.Close()
	}
}
