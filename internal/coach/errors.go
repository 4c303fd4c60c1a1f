package coach

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/writepal/internal/domain"
)

// ErrorKind classifies session failures.
type ErrorKind string

const (
	KindParse        ErrorKind = "parse"
	KindGeneration   ErrorKind = "generation"
	KindConversation ErrorKind = "conversation"
	KindProfile      ErrorKind = "profile"
	KindCancelled    ErrorKind = "cancelled"
	KindInternal     ErrorKind = "internal"
)

// SessionError is returned by Run and Step when a session cannot continue.
type SessionError struct {
	Phase domain.Phase
	Kind  ErrorKind
	Err   error
}

func newSessionError(phase domain.Phase, kind ErrorKind, err error) *SessionError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCancelled
	}
	return &SessionError{Phase: phase, Kind: kind, Err: err}
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session failed in %s (%s): %v", e.Phase, e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Code is the stable identifier sent to interfaces alongside the message.
func (e *SessionError) Code() string {
	switch e.Kind {
	case KindParse:
		return "parse_failed"
	case KindGeneration:
		return "generation_failed"
	case KindConversation:
		return "conversation_closed"
	case KindProfile:
		return "profile_unavailable"
	case KindCancelled:
		return "session_cancelled"
	default:
		return "internal_error"
	}
}

// UserMessage is a learner-friendly description of the failure.
func (e *SessionError) UserMessage() string {
	switch e.Kind {
	case KindParse:
		return "Sorry, the coach got confused and could not continue. Please start a new session."
	case KindGeneration:
		return "Sorry, the coach is not available right now. Please try again in a little while."
	case KindProfile:
		return "Sorry, we could not load your writing profile. Please try again later."
	case KindCancelled:
		return "This session has ended."
	default:
		return "Sorry, something went wrong. Please start a new session."
	}
}
