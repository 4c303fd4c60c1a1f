package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const detachTimeout = 5 * time.Second

type attachment struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks the single live connection attached to each session. A
// second connection for the same session replaces the first, since two
// readers would split the prompt stream between them.
type Registry struct {
	mu     sync.Mutex
	active map[string]*attachment
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*attachment)}
}

// Attach makes conn the active connection of sessionID. A previous
// connection is cancelled and Attach waits for it to detach, so only one
// connection ever reads the session's prompts. The returned func must be
// called once the connection stops reading.
func (m *Registry) Attach(sessionID string, conn *websocket.Conn, cancel context.CancelFunc) (detach func()) {
	a := &attachment{conn: conn, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	prev := m.active[sessionID]
	m.active[sessionID] = a
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		select {
		case <-prev.done:
		case <-time.After(detachTimeout):
			slog.Warn("Previous chat connection did not detach in time", "session_id", sessionID)
		}
		slog.Info("Chat connection replaced", "session_id", sessionID)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.active[sessionID] == a {
				delete(m.active, sessionID)
			}
			m.mu.Unlock()
			close(a.done)
		})
	}
}

// CloseSession cancels the connection attached to sessionID, if any.
func (m *Registry) CloseSession(sessionID string) {
	m.mu.Lock()
	a, ok := m.active[sessionID]
	m.mu.Unlock()
	if ok {
		a.cancel()
	}
}

// Count returns the number of attached connections.
func (m *Registry) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
