package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaModel = "llama3.1"

// Ollama implements Generator against a local Ollama server through langchaingo.
type Ollama struct {
	model llms.Model
}

// NewOllama connects lazily; the first Generate call reaches the server.
func NewOllama(cfg Settings) (*Ollama, error) {
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &Ollama{model: m}, nil
}

// Generate sends system and user messages as one conversation.
func (o *Ollama) Generate(ctx context.Context, prompt Prompt) (string, error) {
	content := []llms.MessageContent{}
	if prompt.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, prompt.System))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt.User))

	resp, err := o.model.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama: %w", errEmptyCompletion)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
