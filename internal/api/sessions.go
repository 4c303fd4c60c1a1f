package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/identity"
	"github.com/ashureev/writepal/internal/render"
	"github.com/ashureev/writepal/internal/session"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
)

type startRequest struct {
	UserID string `json:"user_id"`
}

type replyRequest struct {
	Message string `json:"message"`
}

// turnResponse carries everything the pipeline said since the last request.
type turnResponse struct {
	SessionID string           `json:"session_id"`
	UserID    string           `json:"user_id,omitempty"`
	Phase     string           `json:"phase"`
	Messages  []render.Message `json:"messages"`
	Awaiting  bool             `json:"awaiting"`
	Done      bool             `json:"done"`
}

// RegisterRoutes registers session and profile routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.StartSession)
			r.Get("/{sessionID}", h.GetSession)
			r.Delete("/{sessionID}", h.DeleteSession)
			r.Post("/{sessionID}/reply", h.Reply)
			r.Get("/{sessionID}/history", h.History)
		})
		r.Get("/profiles/{userID}", h.GetProfile)
		r.Put("/profiles/{userID}", h.PutProfile)
	})
}

func (h *Handler) allow(w http.ResponseWriter, owner string) bool {
	if h.limiter.Allow(owner) {
		return true
	}
	h.logger.Warn("Rate limit exceeded", "owner", owner)
	Error(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

// StartSession launches a pipeline and returns its opening prompts.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	owner := identity.OwnerIDFromContext(r.Context())
	if !h.allow(w, owner) {
		return
	}

	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fromError(w, r, err)
		return
	}

	s, err := h.sessions.Start(strings.TrimSpace(req.UserID), "http", session.WithOwner(owner))
	if err != nil {
		h.fromError(w, r, err)
		return
	}

	resp, err := h.drain(r.Context(), s)
	if err != nil {
		h.fromError(w, r, err)
		return
	}
	resp.UserID = s.UserID
	JSON(w, http.StatusCreated, resp)
}

// Reply posts the learner's answer and returns the pipeline's next prompts.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	owner := identity.OwnerIDFromContext(r.Context())
	if !h.allow(w, owner) {
		return
	}

	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"), owner)
	if err != nil {
		h.fromError(w, r, err)
		return
	}

	var req replyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fromError(w, r, err)
		return
	}

	if err := s.Reply(req.Message); err != nil {
		h.fromError(w, r, err)
		return
	}

	resp, err := h.drain(r.Context(), s)
	if err != nil {
		h.fromError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// GetSession returns a session's status.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"), identity.OwnerIDFromContext(r.Context()))
	if err != nil {
		h.fromError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s.Status())
}

// ListSessions returns the caller's sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	statuses := h.sessions.ListForOwner(identity.OwnerIDFromContext(r.Context()))
	if statuses == nil {
		statuses = []session.Status{}
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": statuses})
}

// History returns every message already delivered, for reconnecting clients.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"), identity.OwnerIDFromContext(r.Context()))
	if err != nil {
		h.fromError(w, r, err)
		return
	}
	delivered := s.Delivered()
	JSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"messages":   render.Messages(delivered),
		"done":       render.ContainsDone(delivered),
	})
}

// DeleteSession cancels a running session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID"), identity.OwnerIDFromContext(r.Context())); err != nil {
		h.fromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) drain(ctx context.Context, s *session.Session) (turnResponse, error) {
	msgs, err := s.Drain(ctx, h.drainIdle)
	resp := turnResponse{
		SessionID: s.ID,
		Messages:  render.Messages(msgs),
		Done:      render.ContainsDone(msgs),
	}
	switch {
	case errors.Is(err, channel.ErrClosed):
		resp.Done = true
	case err != nil:
		return resp, fmt.Errorf("drain session %s: %w", s.ID, errors.Join(err, errdefs.ErrUnavailable))
	}
	st := s.Status()
	resp.Phase = string(st.Phase)
	resp.Awaiting = st.Awaiting && !resp.Done
	return resp, nil
}
