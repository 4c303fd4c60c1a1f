// Package coach runs the essay coaching conversation: intake, Socratic
// brainstorming, outline, draft collection and the review/revise loop.
//
// Every decision is delegated to a text generator; the pipeline only builds
// prompts, parses the answers and moves between phases. It talks to the
// learner exclusively through a Conversation, so the same pipeline serves the
// console, the TUI, the HTTP API and WebSocket clients.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/domain"
	"github.com/ashureev/writepal/internal/llm"
)

// State is the session state threaded through every phase.
type State = domain.EssayState

// Conversation is the pipeline's side of a session channel.
type Conversation interface {
	SendPrompt(msg channel.Message) error
	AwaitReply(ctx context.Context) (string, error)
	SignalDone()
	Fail(code, text string)
}

// ProfileSource looks up learner profiles. A nil profile with a nil error
// means the learner is unknown.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// SubmissionRecorder stores accepted essays in the learner's history.
type SubmissionRecorder interface {
	AppendSubmission(ctx context.Context, userID string, sub domain.Submission) error
}

// Options bounds the pipeline's loops.
type Options struct {
	MaxBrainstormTurns int
	MaxRevisions       int
	MaxParseRetries    int
	PassScore          int
	// OnPhase is called before each phase runs.
	OnPhase func(phase domain.Phase, st *State)
}

// DefaultOptions returns the limits used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxBrainstormTurns: 8,
		MaxRevisions:       3,
		MaxParseRetries:    2,
		PassScore:          80,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxBrainstormTurns <= 0 {
		o.MaxBrainstormTurns = def.MaxBrainstormTurns
	}
	if o.PassScore <= 0 {
		o.PassScore = def.PassScore
	}
	if o.MaxRevisions < 0 {
		o.MaxRevisions = 0
	}
	if o.MaxParseRetries < 0 {
		o.MaxParseRetries = 0
	}
	return o
}

// Pipeline drives one coaching conversation at a time. It holds no
// per-session state and may be shared across sessions.
type Pipeline struct {
	gen      llm.Generator
	profiles ProfileSource
	recorder SubmissionRecorder
	opts     Options
	logger   *slog.Logger
}

// New creates a pipeline. recorder may be nil.
func New(gen llm.Generator, profiles ProfileSource, recorder SubmissionRecorder, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		gen:      gen,
		profiles: profiles,
		recorder: recorder,
		opts:     opts.normalized(),
		logger:   logger,
	}
}

// Options returns the effective limits.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run executes a whole session for userID over conv. It always ends the
// conversation: with the sentinel on success, or with an error message and
// the sentinel on failure.
func (p *Pipeline) Run(ctx context.Context, userID string, conv Conversation) (*State, error) {
	st := &State{UserID: userID}
	logger := p.logger.With("user_id", userID)

	phase := domain.PhaseIntake
	for !phase.Terminal() {
		if p.opts.OnPhase != nil {
			p.opts.OnPhase(phase, st)
		}
		logger.Debug("entering phase", "phase", phase)

		next, err := p.Step(ctx, conv, phase, st)
		if err != nil {
			var serr *SessionError
			if !errors.As(err, &serr) {
				serr = newSessionError(phase, KindInternal, err)
			}
			if serr.Kind == KindCancelled {
				logger.Info("session cancelled", "phase", phase)
			} else {
				logger.Error("session failed", "phase", phase, "kind", serr.Kind, "error", serr.Err)
			}
			conv.Fail(serr.Code(), serr.UserMessage())
			return st, serr
		}
		phase = next
	}

	if p.opts.OnPhase != nil {
		p.opts.OnPhase(domain.PhaseDone, st)
	}
	logger.Info("session completed", "topic", st.Topic, "revisions", st.Revisions, "passed", st.Passed())
	conv.SignalDone()
	return st, nil
}

// Step runs one phase against st and returns the phase that follows.
func (p *Pipeline) Step(ctx context.Context, conv Conversation, phase domain.Phase, st *State) (domain.Phase, error) {
	if err := ctx.Err(); err != nil {
		return phase, newSessionError(phase, KindCancelled, err)
	}
	switch phase {
	case domain.PhaseIntake:
		return p.intake(ctx, conv, st)
	case domain.PhaseBrainstorm:
		return p.brainstorm(ctx, conv, st)
	case domain.PhaseOutline:
		return p.outline(ctx, conv, st)
	case domain.PhaseCollectDraft:
		return p.collectDraft(ctx, conv, st)
	case domain.PhaseReview:
		return p.review(ctx, conv, st)
	case domain.PhaseCoach:
		return p.coach(ctx, conv, st)
	case domain.PhasePraise:
		return p.praise(ctx, conv, st)
	case domain.PhaseGiveUp:
		return p.giveUp(conv, st)
	default:
		return phase, newSessionError(phase, KindInternal, fmt.Errorf("no handler for phase %q", phase))
	}
}

func (p *Pipeline) say(conv Conversation, phase domain.Phase, text string) error {
	if err := conv.SendPrompt(channel.Message{Kind: channel.KindText, Phase: string(phase), Text: text}); err != nil {
		return newSessionError(phase, KindConversation, err)
	}
	return nil
}

// ask sends a question and blocks for the learner's reply.
func (p *Pipeline) ask(ctx context.Context, conv Conversation, phase domain.Phase, question string, multiline bool) (string, error) {
	msg := channel.Message{Kind: channel.KindQuestion, Phase: string(phase), Text: question, Multiline: multiline}
	if err := conv.SendPrompt(msg); err != nil {
		return "", newSessionError(phase, KindConversation, err)
	}
	reply, err := conv.AwaitReply(ctx)
	if err != nil {
		return "", newSessionError(phase, KindConversation, err)
	}
	return reply, nil
}

// askNonEmpty repeats question until the learner sends something.
func (p *Pipeline) askNonEmpty(ctx context.Context, conv Conversation, phase domain.Phase, question, retry string, multiline bool) (string, error) {
	reply, err := p.ask(ctx, conv, phase, question, multiline)
	for err == nil && isBlank(reply) {
		reply, err = p.ask(ctx, conv, phase, retry, multiline)
	}
	return reply, err
}

// generateParsed calls the generator and parses its output, re-prompting
// with a repair note up to MaxParseRetries times.
func generateParsed[T any](ctx context.Context, p *Pipeline, phase domain.Phase, prompt llm.Prompt, parse func(string) Result[T]) (T, error) {
	var (
		zero    T
		lastErr *ParseError
		current = prompt
	)
	for attempt := 0; attempt <= p.opts.MaxParseRetries; attempt++ {
		raw, err := p.gen.Generate(ctx, current)
		if err != nil {
			return zero, newSessionError(phase, KindGeneration, err)
		}
		res := parse(raw)
		if res.OK() {
			return res.Value, nil
		}
		lastErr = res.Err
		p.logger.Warn("unparseable generator output", "phase", phase, "attempt", attempt+1, "reason", lastErr.Reason)
		current = repairPrompt(prompt, lastErr)
	}
	return zero, newSessionError(phase, KindParse, lastErr)
}
