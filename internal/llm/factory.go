package llm

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/containerd/errdefs"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGRPC      = "grpc"
	ProviderMock      = "mock"
)

// Providers lists every supported provider name.
var Providers = []string{
	ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderOllama, ProviderGRPC, ProviderMock,
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// New builds the generator named by cfg.Provider. The returned closer
// releases any connection the backend holds.
func New(cfg Settings, logger *slog.Logger) (Generator, io.Closer, error) {
	var (
		gen Generator
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		gen, err = wrap(NewOpenAI(cfg))
	case ProviderDeepSeek:
		gen, err = wrap(NewDeepSeek(cfg))
	case ProviderAnthropic:
		gen, err = wrap(NewAnthropic(cfg))
	case ProviderOllama:
		gen, err = wrap(NewOllama(cfg))
	case ProviderGRPC:
		client, err := NewGrpcClient(DefaultGrpcClientConfig(cfg.Addr), logger)
		if err != nil {
			return nil, nil, err
		}
		return client, closerFunc(client.Close), nil
	case ProviderMock, "":
		gen = NewMock()
	default:
		err = fmt.Errorf("unknown llm provider %q (want one of %s): %w",
			cfg.Provider, strings.Join(Providers, ", "), errdefs.ErrInvalidArgument)
	}
	if err != nil {
		return nil, nil, err
	}
	return gen, nopCloser{}, nil
}

func wrap[T Generator](g T, err error) (Generator, error) {
	if err != nil {
		return nil, err
	}
	return g, nil
}
