package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/samber/lo"
)

const (
	topicQuestion        = "What topic would you like to write about?"
	requirementsQuestion = "Does your teacher have any special requirements? (send an empty reply for none)"
	draftQuestion        = "Please write your essay now. Press Enter on an empty line when you are done."
	reviseQuestion       = "Please write your revised essay. Press Enter on an empty line when you are done."
)

var errNoAssessment = errors.New("no assessment to act on")

func (p *Pipeline) intake(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseIntake

	topic, err := p.askNonEmpty(ctx, conv, phase, topicQuestion, "Every essay needs a topic. What would you like to write about?", false)
	if err != nil {
		return phase, err
	}
	reqs, err := p.ask(ctx, conv, phase, requirementsQuestion, false)
	if err != nil {
		return phase, err
	}
	st.Topic = strings.TrimSpace(topic)
	st.Requirements = strings.TrimSpace(reqs)

	profile, err := p.profiles.GetProfile(ctx, st.UserID)
	if err != nil {
		return phase, newSessionError(phase, KindProfile, err)
	}
	if profile != nil {
		st.Profile = *profile
	}
	st.Profile.UserID = st.UserID
	st.Grade = domain.NormalizeGrade(st.Profile.Grade)
	st.Age = st.Profile.Age
	st.Guide = domain.GuideForGrade(st.Grade)

	intro := fmt.Sprintf("Great! We'll write about %q. For grade %d, aim for %d paragraphs and %d-%d words.",
		st.Topic, st.Grade, st.Guide.Paragraphs, st.Guide.MinWords, st.Guide.MaxWords)
	if err := p.say(conv, phase, intro); err != nil {
		return phase, err
	}
	return domain.PhaseBrainstorm, nil
}

func (p *Pipeline) outline(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseOutline

	outline, err := generateParsed(ctx, p, phase, outlinePrompt(st), parseNonEmpty(phase))
	if err != nil {
		return phase, err
	}
	st.Outline = outline
	if err := p.say(conv, phase, "Here is your outline:\n"+outline); err != nil {
		return phase, err
	}
	return domain.PhaseCollectDraft, nil
}

func (p *Pipeline) collectDraft(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseCollectDraft

	draft, err := p.askNonEmpty(ctx, conv, phase, draftQuestion, "I didn't get any writing yet. Please type your essay.", true)
	if err != nil {
		return phase, err
	}
	st.Draft = strings.TrimSpace(draft)
	return domain.PhaseReview, nil
}

func (p *Pipeline) review(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseReview

	parse := func(raw string) Result[domain.Assessment] {
		return ParseAssessment(raw, p.opts.PassScore)
	}
	assessment, err := generateParsed(ctx, p, phase, reviewPrompt(st), parse)
	if err != nil {
		return phase, err
	}
	st.Assessment = &assessment
	p.logger.Info("draft reviewed", "user_id", st.UserID, "score", assessment.Score, "passed", assessment.Passed, "revision", st.Revisions)

	if err := p.say(conv, phase, fmt.Sprintf("Your essay scored %d out of 100.", assessment.Score)); err != nil {
		return phase, err
	}

	switch {
	case assessment.Passed:
		return domain.PhasePraise, nil
	case st.Revisions >= p.opts.MaxRevisions:
		return domain.PhaseGiveUp, nil
	default:
		return domain.PhaseCoach, nil
	}
}

func (p *Pipeline) coach(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseCoach

	if st.Assessment == nil {
		return phase, newSessionError(phase, KindInternal, errNoAssessment)
	}
	if len(st.Assessment.Issues) > 0 {
		bullets := lo.Map(st.Assessment.Issues, func(issue string, _ int) string {
			return "• " + issue
		})
		if err := p.say(conv, phase, "Things to work on:\n"+strings.Join(bullets, "\n")); err != nil {
			return phase, err
		}
	}

	advice, err := generateParsed(ctx, p, phase, coachPrompt(st), parseNonEmpty(phase))
	if err != nil {
		return phase, err
	}
	if err := p.say(conv, phase, advice); err != nil {
		return phase, err
	}

	draft, err := p.askNonEmpty(ctx, conv, phase, reviseQuestion, "I didn't get your revision. Please type your essay again.", true)
	if err != nil {
		return phase, err
	}
	st.Draft = strings.TrimSpace(draft)
	st.Revisions++
	return domain.PhaseReview, nil
}

func (p *Pipeline) praise(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhasePraise

	if st.Assessment == nil {
		return phase, newSessionError(phase, KindInternal, errNoAssessment)
	}
	last, hasLast := st.Profile.LastScore()
	text, err := generateParsed(ctx, p, phase, praisePrompt(st, last, hasLast), parseNonEmpty(phase))
	if err != nil {
		return phase, err
	}
	if hasLast && st.Assessment.Score > last {
		text = fmt.Sprintf("%s\n\nThat's +%d points since last time!", text, st.Assessment.Score-last)
	}
	if err := p.say(conv, phase, text); err != nil {
		return phase, err
	}

	if p.recorder != nil {
		sub := domain.Submission{
			Date:     time.Now().Format(time.DateOnly),
			Topic:    st.Topic,
			Score:    st.Assessment.Score,
			Comments: firstLine(text),
		}
		if err := p.recorder.AppendSubmission(ctx, st.UserID, sub); err != nil {
			p.logger.Warn("failed to record submission", "user_id", st.UserID, "error", err)
		}
	}
	return domain.PhaseDone, nil
}

func (p *Pipeline) giveUp(conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseGiveUp

	text := fmt.Sprintf("You worked really hard and revised your essay %d times. "+
		"Let's take a break here. Show your latest draft to your teacher and try again another day!", st.Revisions)
	if err := p.say(conv, phase, text); err != nil {
		return phase, err
	}
	return domain.PhaseDone, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
