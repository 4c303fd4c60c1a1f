package coach

import (
	"fmt"

	"github.com/ashureev/writepal/internal/domain"
)

// ParseError describes generator output that could not be interpreted.
type ParseError struct {
	Phase  domain.Phase
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unparseable output: %s", e.Phase, e.Reason)
}

// Result is either a parsed value or the reason parsing failed.
type Result[T any] struct {
	Value T
	Err   *ParseError
}

// Ok wraps a successfully parsed value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a parse failure.
func Fail[T any](phase domain.Phase, raw, reason string) Result[T] {
	return Result[T]{Err: &ParseError{Phase: phase, Reason: reason, Raw: raw}}
}

// OK reports whether parsing succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap returns the value or the parse error as a plain error.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}
