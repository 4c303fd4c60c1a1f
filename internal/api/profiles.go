package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
)

// GetProfile returns a learner profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		h.fromError(w, r, err)
		return
	}
	if p == nil {
		h.fromError(w, r, fmt.Errorf("profile %q: %w", userID, errdefs.ErrNotFound))
		return
	}
	JSON(w, http.StatusOK, p)
}

// PutProfile creates or replaces a learner profile.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var p domain.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		h.fromError(w, r, err)
		return
	}
	if p.UserID != "" && p.UserID != userID {
		h.fromError(w, r, fmt.Errorf("user_id %q does not match path: %w", p.UserID, errdefs.ErrInvalidArgument))
		return
	}
	if p.Grade != 0 && (p.Grade < domain.MinGrade || p.Grade > domain.MaxGrade) {
		h.fromError(w, r, fmt.Errorf("grade must be between %d and %d: %w", domain.MinGrade, domain.MaxGrade, errdefs.ErrInvalidArgument))
		return
	}
	for _, sub := range p.History {
		if _, err := time.Parse(time.DateOnly, sub.Date); err != nil {
			h.fromError(w, r, fmt.Errorf("history date %q: %w", sub.Date, errdefs.ErrInvalidArgument))
			return
		}
	}
	p.UserID = userID

	if err := h.repo.UpsertProfile(r.Context(), &p); err != nil {
		h.fromError(w, r, err)
		return
	}
	stored, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		h.fromError(w, r, err)
		return
	}
	h.logger.Info("Profile saved", "user_id", userID)
	JSON(w, http.StatusOK, stored)
}
