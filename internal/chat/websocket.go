// Package chat streams coaching sessions to browsers over WebSocket.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/identity"
	"github.com/ashureev/writepal/internal/render"
	"github.com/ashureev/writepal/internal/session"
	"github.com/coder/websocket"
	"github.com/sourcegraph/conc"
)

// Limiter throttles learner replies per device.
type Limiter interface {
	Allow(key string) bool
}

// Handler serves /ws/chat.
type Handler struct {
	sessions      *session.Manager
	registry      *Registry
	limiter       Limiter
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHandler creates a WebSocket chat handler.
func NewHandler(sessions *session.Manager, registry *Registry, limiter Limiter, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Handler{
		sessions:      sessions,
		registry:      registry,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// inbound is a frame sent by the browser.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// outbound is a frame sent to the browser.
type outbound struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Message   *render.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ServeHTTP upgrades the request and runs the chat until the session ends
// or the client leaves. With ?session_id= it reattaches to a running session
// and replays what was already delivered; otherwise it starts a new one for
// ?user_id=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := identity.OwnerIDFromContext(r.Context())
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	h.logger.Info("WebSocket connection request", "owner", owner, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	var (
		s   *session.Session
		err error
	)
	if sessionID != "" {
		s, err = h.sessions.Get(sessionID, owner)
	} else {
		s, err = h.sessions.Start(strings.TrimSpace(r.URL.Query().Get("user_id")), "ws", session.WithOwner(owner))
	}
	if err != nil {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", s.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", s.ID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	detach := h.registry.Attach(s.ID, ws, cancel)
	defer detach()

	if err := h.writeJSON(ctx, ws, outbound{Type: "session", SessionID: s.ID, UserID: s.UserID}); err != nil {
		return
	}
	if sessionID != "" && !h.replay(ctx, ws, s) {
		return
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		h.inputLoop(ctx, ws, s, owner)
	})
	wg.Go(func() {
		defer cancel()
		h.outputLoop(ctx, ws, s)
	})
	wg.Wait()
	h.logger.Info("Chat connection ended", "session_id", s.ID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == strings.TrimRight(h.allowedOrigin, "/") {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// replay resends already delivered messages. It reports false when the
// connection should end.
func (h *Handler) replay(ctx context.Context, ws *websocket.Conn, s *session.Session) bool {
	delivered := s.Delivered()
	for _, m := range render.Messages(delivered) {
		if err := h.writeJSON(ctx, ws, outbound{Type: "message", Message: &m}); err != nil {
			return false
		}
	}
	if render.ContainsDone(delivered) {
		_ = h.writeJSON(ctx, ws, outbound{Type: "done"})
		return false
	}
	return h.writeJSON(ctx, ws, outbound{Type: "replay_end"}) == nil
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, s *session.Session, owner string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed", "session_id", s.ID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", s.ID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = inbound{Type: "reply", Content: string(data)}
		}

		switch msg.Type {
		case "reply":
			if h.limiter != nil && !h.limiter.Allow(owner) {
				_ = h.writeJSON(ctx, ws, outbound{Type: "error", Error: "rate limit exceeded"})
				continue
			}
			if err := s.Reply(msg.Content); err != nil {
				_ = h.writeJSON(ctx, ws, outbound{Type: "error", Error: replyError(err)})
			}
		case "ping":
			_ = h.writeJSON(ctx, ws, outbound{Type: "pong"})
		case "close":
			h.logger.Info("Chat close requested", "session_id", s.ID)
			return
		}
	}
}

func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, s *session.Session) {
	for {
		msg, err := s.Next(ctx)
		if errors.Is(err, channel.ErrClosed) {
			_ = h.writeJSON(ctx, ws, outbound{Type: "done"})
			return
		}
		if err != nil {
			return
		}
		if msg.IsSentinel() {
			_ = h.writeJSON(ctx, ws, outbound{Type: "done"})
			return
		}
		m := render.FromChannel(msg)
		if err := h.writeJSON(ctx, ws, outbound{Type: "message", Message: &m}); err != nil {
			h.logger.Debug("WebSocket write error", "error", err, "session_id", s.ID)
			return
		}
	}
}

func replyError(err error) string {
	switch {
	case errors.Is(err, channel.ErrReplyPending):
		return "previous reply still being read"
	case errors.Is(err, channel.ErrClosed):
		return "session finished"
	default:
		return "reply failed"
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
