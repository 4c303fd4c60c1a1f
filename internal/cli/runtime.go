package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashureev/writepal/internal/coach"
	"github.com/ashureev/writepal/internal/config"
	"github.com/ashureev/writepal/internal/domain"
	"github.com/ashureev/writepal/internal/llm"
	"github.com/ashureev/writepal/internal/session"
	"github.com/ashureev/writepal/internal/store"
	"github.com/ashureev/writepal/internal/transcript"
)

// runtime holds the dependencies a coaching front-end needs.
type runtime struct {
	repo        store.Repository
	generator   llm.Generator
	pipeline    *coach.Pipeline
	transcripts *transcript.Logger
	sessions    *session.Manager

	closers []io.Closer
	logger  *slog.Logger
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Repository, error) {
	repo, err := store.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	logger.Info("Database connected", "driver", cfg.Database.Driver)
	return repo, nil
}

func llmSettings(cfg *config.Config) llm.Settings {
	return llm.Settings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Addr:     cfg.LLM.GeneratorAddr,
	}
}

func pipelineOptions(cfg *config.Config, logger *slog.Logger) coach.Options {
	return coach.Options{
		MaxBrainstormTurns: cfg.Session.MaxBrainstormTurns,
		MaxRevisions:       cfg.Session.MaxRevisions,
		MaxParseRetries:    cfg.Session.MaxParseRetries,
		PassScore:          cfg.Session.PassScore,
		OnPhase: func(phase domain.Phase, st *coach.State) {
			logger.Debug("Phase started", "phase", phase, "user_id", st.UserID, "revisions", st.Revisions)
		},
	}
}

// newRuntime opens storage, seeds the demo learner and builds the pipeline
// and session manager. sessionOpts may set front-end specific hooks.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, sessionOpts session.Options) (*runtime, error) {
	rt := &runtime{logger: logger}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.repo = repo
	rt.closers = append(rt.closers, repo)

	if err := store.SeedDemo(ctx, repo, logger); err != nil {
		rt.Close()
		return nil, err
	}

	gen, genCloser, err := llm.New(llmSettings(cfg), logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize generator: %w", err)
	}
	rt.generator = gen
	rt.closers = append(rt.closers, genCloser)
	logger.Info("Generator ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	transcripts, err := transcript.NewConversationLogger(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize transcripts: %w", err)
	}
	rt.transcripts = transcripts
	rt.closers = append(rt.closers, transcripts)

	rt.pipeline = coach.New(gen, repo, repo, pipelineOptions(cfg, logger), logger)

	sessionOpts.TTL = cfg.Session.TTL
	sessionOpts.Observers = transcripts.Observer
	sessionOpts.Logger = logger
	rt.sessions = session.NewManager(rt.pipeline, sessionOpts)
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Error("Failed to close resource", "error", err)
		}
	}
	rt.closers = nil
}
