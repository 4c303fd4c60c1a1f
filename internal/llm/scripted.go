package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrScriptExhausted is returned when a Scripted generator runs out of replies.
var ErrScriptExhausted = errors.New("scripted generator exhausted")

// Scripted returns a fixed sequence of responses and records every prompt.
// Entries that are errors are returned as errors.
type Scripted struct {
	mu      sync.Mutex
	replies []any
	prompts []Prompt
}

// NewScripted creates a generator that answers with replies in order.
// Each reply must be a string or an error.
func NewScripted(replies ...any) *Scripted {
	return &Scripted{replies: replies}
}

// Generate pops the next scripted reply.
func (s *Scripted) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("%w after %d prompts", ErrScriptExhausted, len(s.prompts))
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	switch v := next.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return fmt.Sprint(v), nil
	}
}

// Prompts returns a copy of every prompt received so far.
func (s *Scripted) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.prompts...)
}

// Remaining reports how many replies are left.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
