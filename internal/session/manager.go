package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/coach"
	"github.com/ashureev/writepal/internal/domain"
	"github.com/containerd/errdefs"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown sessions and sessions owned by another user.
var ErrNotFound = fmt.Errorf("session %w", errdefs.ErrNotFound)

const (
	defaultHistorySize   = 200
	defaultSweepInterval = time.Minute
)

// Runner executes one coaching conversation. *coach.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, userID string, conv coach.Conversation) (*coach.State, error)
}

// ObserverFactory builds a per-session channel observer, e.g. a transcript writer.
type ObserverFactory func(userID, sessionID, via string) channel.Observer

// Options configures a Manager.
type Options struct {
	TTL         time.Duration
	HistorySize int
	Observers   ObserverFactory
	Logger      *slog.Logger

	// OnRemove runs after a session is closed or swept, e.g. to drop its
	// live connections.
	OnRemove func(sessionID string)
}

// Manager tracks running sessions.
type Manager struct {
	runner Runner
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return &Manager{
		runner:   runner,
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
}

// StartOption customizes a new session.
type StartOption func(*Session)

// WithOwner sets the identity allowed to access the session. It defaults to
// the profile user id.
func WithOwner(owner string) StartOption {
	return func(s *Session) {
		if owner != "" {
			s.Owner = owner
		}
	}
}

// Start launches a new session for userID. via names the front-end for transcripts.
func (m *Manager) Start(userID, via string, opts ...StartOption) (*Session, error) {
	if userID == "" {
		userID = domain.DemoUserID
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Owner:     userID,
		Via:       via,
		CreatedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		phase:     domain.PhaseIntake,
		lastSeen:  time.Now(),
		delivered: newRing[channel.Message](m.opts.HistorySize),
	}
	for _, opt := range opts {
		opt(s)
	}

	var extra channel.Observer
	if m.opts.Observers != nil {
		extra = m.opts.Observers(userID, s.ID, via)
	}
	s.ch = channel.New(channel.WithObserver(func(dir channel.Direction, msg channel.Message) {
		s.observe(dir, msg)
		if extra != nil {
			extra(dir, msg)
		}
	}))

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		st, err := m.runner.Run(ctx, userID, s.ch)
		s.finish(st, err)
	}()

	m.logger.Info("Session started", "session_id", s.ID, "user_id", userID, "owner", s.Owner, "via", via)
	return s, nil
}

// Get returns the session if it exists and belongs to owner.
func (m *Manager) Get(sessionID, owner string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || (owner != "" && s.Owner != owner) {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

// Close cancels a session and forgets it.
func (m *Manager) Close(sessionID, owner string) error {
	s, err := m.Get(sessionID, owner)
	if err != nil {
		return err
	}
	m.remove(s, "closed")
	return nil
}

// ListForOwner returns the statuses of owner's sessions.
func (m *Manager) ListForOwner(owner string) []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Status
	for _, s := range m.sessions {
		if s.Owner == owner {
			out = append(out, s.Status())
		}
	}
	return out
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(s *Session, reason string) {
	m.mu.Lock()
	_, ok := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	s.cancel()
	if !ok {
		return
	}
	if m.opts.OnRemove != nil {
		m.opts.OnRemove(s.ID)
	}
	m.logger.Info("Session removed", "session_id", s.ID, "user_id", s.UserID, "reason", reason)
}

// Sweep removes sessions idle for longer than the TTL. It returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.RLock()
	var expired []*Session
	for _, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.opts.TTL {
			expired = append(expired, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range expired {
		m.remove(s, "idle")
	}
	if len(expired) > 0 {
		m.logger.Info("TTL worker cleanup completed", "cleaned", len(expired))
	}
	return len(expired)
}

// StartTTLWorker runs a background goroutine that periodically sweeps idle sessions.
func (m *Manager) StartTTLWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		m.logger.Info("TTL worker started", "interval", interval, "ttl", m.opts.TTL)

		for {
			select {
			case now := <-ticker.C:
				m.Sweep(now)
			case <-ctx.Done():
				m.logger.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Shutdown cancels every session and waits for their pipelines to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.cancel()
	}

	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
}
