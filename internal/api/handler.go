// Package api provides HTTP handlers for the WritePal API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/session"
	"github.com/ashureev/writepal/internal/store"
	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errhttp"
)

const maxRequestBodySize = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo      store.Repository
	sessions  *session.Manager
	limiter   *RateLimiter
	drainIdle time.Duration
	logger    *slog.Logger
}

// Options configures a Handler.
type Options struct {
	// DrainIdle bounds how long a request waits for the pipeline when it is
	// neither asking a question nor finished.
	DrainIdle time.Duration
	Limiter   *RateLimiter
	Logger    *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions *session.Manager, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		repo:      repo,
		sessions:  sessions,
		limiter:   opts.Limiter,
		drainIdle: opts.DrainIdle,
		logger:    opts.Logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// fromError maps err to a status code through its errdefs class. Server-side
// failures get a generic message.
func (h *Handler) fromError(w http.ResponseWriter, r *http.Request, err error) {
	err = classify(err)
	status := errhttp.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		Error(w, status, "internal error")
		return
	}
	Error(w, status, err.Error())
}

// classify attaches errdefs classes to channel errors.
func classify(err error) error {
	switch {
	case errors.Is(err, channel.ErrReplyPending):
		return fmt.Errorf("%w: %w", err, errdefs.ErrConflict)
	case errors.Is(err, channel.ErrClosed):
		return fmt.Errorf("%w: %w", err, errdefs.ErrFailedPrecondition)
	default:
		return err
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %v: %w", err, errdefs.ErrInvalidArgument)
	}
	return nil
}
