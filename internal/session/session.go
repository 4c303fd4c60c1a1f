// Package session owns the lifecycle of running coaching sessions: it starts
// a pipeline goroutine per session, tracks ownership and activity, and sweeps
// idle sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/coach"
	"github.com/ashureev/writepal/internal/domain"
)

// Status is a point-in-time view of a session.
type Status struct {
	ID        string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	Phase     domain.Phase `json:"phase"`
	Awaiting  bool         `json:"awaiting"`
	Done      bool         `json:"done"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	LastSeen  time.Time    `json:"last_seen"`
}

// Session is one running coaching conversation.
type Session struct {
	ID        string
	UserID    string
	Owner     string
	Via       string
	CreatedAt time.Time

	ch     *channel.Channel
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	phase     domain.Phase
	lastSeen  time.Time
	delivered *ring[channel.Message]
	state     *coach.State
	err       error
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) observe(dir channel.Direction, msg channel.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	if dir == channel.Outbound && msg.Phase != "" {
		s.phase = domain.Phase(msg.Phase)
	}
}

func (s *Session) record(msgs []channel.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.delivered.push(msgs...)
}

func (s *Session) finish(st *coach.State, err error) {
	s.mu.Lock()
	s.state = st
	s.err = err
	if err == nil {
		s.phase = domain.PhaseDone
	}
	s.lastSeen = time.Now()
	s.mu.Unlock()
	close(s.done)
}

// Drain returns every prompt available to the learner, recording them for replay.
func (s *Session) Drain(ctx context.Context, idle time.Duration) ([]channel.Message, error) {
	msgs, err := s.ch.DrainPrompts(ctx, idle)
	s.record(msgs)
	return msgs, err
}

// Next returns one prompt, recording it for replay.
func (s *Session) Next(ctx context.Context) (channel.Message, error) {
	msg, err := s.ch.Next(ctx)
	if err == nil {
		s.record([]channel.Message{msg})
	}
	return msg, err
}

// Reply posts the learner's answer to the pipeline.
func (s *Session) Reply(text string) error {
	s.touch()
	return s.ch.PostReply(text)
}

// Awaiting reports whether the pipeline waits for a reply.
func (s *Session) Awaiting() bool {
	return s.ch.Awaiting()
}

// Delivered returns the messages already handed to the learner.
func (s *Session) Delivered() []channel.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered.items()
}

// Done is closed when the pipeline goroutine has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Finished reports whether the pipeline goroutine has returned.
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Result returns the final state and error once Finished.
func (s *Session) Result() (*coach.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// Status snapshots the session.
func (s *Session) Status() Status {
	// The channel observer takes s.mu, so channel state is read before it.
	awaiting, closed := s.ch.Awaiting(), s.ch.Closed()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ID:        s.ID,
		UserID:    s.UserID,
		Phase:     s.phase,
		Awaiting:  awaiting,
		Done:      closed,
		CreatedAt: s.CreatedAt,
		LastSeen:  s.lastSeen,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
