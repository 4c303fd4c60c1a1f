package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	deepSeekBaseURL = "https://api.deepseek.com"
	deepSeekModel   = "deepseek-chat"
)

// OpenAI implements Generator using the official openai-go SDK. It also
// serves OpenAI-compatible providers such as DeepSeek through BaseURL.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI builds a chat-completions generator.
func NewOpenAI(cfg Settings) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", errMissingAPIKey)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: %w", errMissingModel)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// NewDeepSeek is NewOpenAI with DeepSeek defaults filled in.
func NewDeepSeek(cfg Settings) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = deepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = deepSeekModel
	}
	return NewOpenAI(cfg)
}

// Generate sends the prompt as a system + user message pair.
func (o *OpenAI) Generate(ctx context.Context, prompt Prompt) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", errEmptyCompletion)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
