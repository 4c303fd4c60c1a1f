// Package llm abstracts the text-generation collaborator used by the coach.
package llm

import (
	"context"
	"errors"
)

// Task names the coaching step a prompt was built for. Backends ignore it;
// the mock generator uses it to pick a canned response.
type Task string

const (
	TaskBrainstorm Task = "brainstorm"
	TaskOutline    Task = "outline"
	TaskReview     Task = "review"
	TaskCoach      Task = "coach"
	TaskPraise     Task = "praise"
)

// Prompt is one generation request.
type Prompt struct {
	Task   Task   `json:"task,omitempty"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt Prompt) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Settings selects and configures a backend.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// Addr is the remote generator address for the grpc provider.
	Addr string
}

var (
	errEmptyCompletion = errors.New("empty completion")
	errMissingAPIKey   = errors.New("api key missing; set LLM_API_KEY")
	errMissingModel    = errors.New("model is required; set LLM_MODEL")
)
