package coach

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/domain"
	"github.com/ashureev/writepal/internal/llm"
)

type fakeProfiles struct {
	profile *domain.Profile
	err     error
}

func (f fakeProfiles) GetProfile(_ context.Context, _ string) (*domain.Profile, error) {
	return f.profile, f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	subs []domain.Submission
}

func (f *fakeRecorder) AppendSubmission(_ context.Context, _ string, sub domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func demoProfiles() fakeProfiles {
	p := domain.DemoProfile()
	return fakeProfiles{profile: &p}
}

type sessionResult struct {
	state    *State
	messages []channel.Message
	err      error
}

// runSession plays the learner: it drains prompts and answers each question
// with the next scripted reply.
func runSession(t *testing.T, p *Pipeline, replies ...string) sessionResult {
	t.Helper()
	ch := channel.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan sessionResult, 1)
	go func() {
		st, err := p.Run(ctx, "kid", ch)
		done <- sessionResult{state: st, err: err}
	}()

	var msgs []channel.Message
	for {
		batch, err := ch.DrainPrompts(ctx, 0)
		if err != nil {
			t.Fatalf("DrainPrompts: %v", err)
		}
		msgs = append(msgs, batch...)
		if len(batch) > 0 && batch[len(batch)-1].IsSentinel() {
			break
		}
		if len(replies) == 0 {
			t.Fatalf("Pipeline asked for more replies than scripted; last message: %+v", msgs[len(msgs)-1])
		}
		if err := ch.PostReply(replies[0]); err != nil {
			t.Fatalf("PostReply: %v", err)
		}
		replies = replies[1:]
	}

	res := <-done
	res.messages = msgs
	return res
}

const longDraft = "My dog Max is the best dog in the world. He runs faster than any dog at the park."

func TestRunPassesOnFirstReview(t *testing.T) {
	gen := llm.NewScripted(
		"What does your dog like to do?",
		"[DONE]\n• Running at the park\n• Playing fetch\n• Sleeping on the couch",
		"1. Intro\n2. Running\n3. Fetch\n4. Naps\n5. Conclusion",
		`Here is the review: {"score": 92, "passed": true, "issues": []}`,
		"Amazing job!",
	)
	rec := &fakeRecorder{}
	p := New(gen, demoProfiles(), rec, DefaultOptions(), quietLogger())

	res := runSession(t, p, "My dog", "", "He likes to run fast", longDraft)
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}

	st := res.state
	if st.Topic != "My dog" || st.Requirements != "" {
		t.Errorf("Intake not recorded: %+v", st)
	}
	if st.Grade != 3 || st.Age != 8 || st.Guide != domain.GuideForGrade(3) {
		t.Errorf("Profile fields wrong: grade=%d age=%d guide=%+v", st.Grade, st.Age, st.Guide)
	}
	if len(st.Ideas) != 3 || st.Ideas[1] != "Playing fetch" {
		t.Errorf("Unexpected ideas %q", st.Ideas)
	}
	if len(st.Transcript) != 1 || st.Transcript[0].Answer != "He likes to run fast" {
		t.Errorf("Unexpected transcript %+v", st.Transcript)
	}
	if !st.Passed() || st.Assessment.Score != 92 {
		t.Errorf("Unexpected assessment %+v", st.Assessment)
	}
	if st.Revisions != 0 {
		t.Errorf("Expected no revisions, got %d", st.Revisions)
	}

	last := res.messages[len(res.messages)-1]
	if !last.IsSentinel() {
		t.Errorf("Expected sentinel last, got %+v", last)
	}
	praise := res.messages[len(res.messages)-2]
	if praise.Phase != string(domain.PhasePraise) || !strings.Contains(praise.Text, "+2") {
		t.Errorf("Expected praise with +2 delta, got %+v", praise)
	}

	if len(rec.subs) != 1 || rec.subs[0].Score != 92 || rec.subs[0].Topic != "My dog" {
		t.Errorf("Submission not recorded: %+v", rec.subs)
	}
	if gen.Remaining() != 0 {
		t.Errorf("Expected every scripted reply used, %d left", gen.Remaining())
	}
}

func TestRunRevisesThenPasses(t *testing.T) {
	gen := llm.NewScripted(
		"[DONE]\n- Snow\n- Sledding\n- Hot cocoa",
		"1. Intro\n2. Snow\n3. Conclusion",
		`{"score": 55, "passed": false, "issues": ["Too short", "Needs a conclusion"]}`,
		"Add more details about sledding!",
		`{"score": 85, "passed": true, "issues": []}`,
		"Great improvement!",
	)
	var phases []domain.Phase
	opts := DefaultOptions()
	opts.OnPhase = func(phase domain.Phase, _ *State) {
		phases = append(phases, phase)
	}
	p := New(gen, demoProfiles(), nil, opts, quietLogger())

	res := runSession(t, p, "Winter", "Use three paragraphs", "Winter is cold.", "Winter is cold. I go sledding with my sister and we drink hot cocoa after.")
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}

	want := []domain.Phase{
		domain.PhaseIntake, domain.PhaseBrainstorm, domain.PhaseOutline, domain.PhaseCollectDraft,
		domain.PhaseReview, domain.PhaseCoach, domain.PhaseReview, domain.PhasePraise, domain.PhaseDone,
	}
	if len(phases) != len(want) {
		t.Fatalf("Expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("Phase %d: expected %s, got %s", i, want[i], phases[i])
		}
	}

	prompts := gen.Prompts()
	secondReview := prompts[4]
	if secondReview.Task != llm.TaskReview || !strings.Contains(secondReview.User, "sledding with my sister") {
		t.Errorf("Second review did not see the revised draft: %q", secondReview.User)
	}
	if !strings.Contains(prompts[3].User, "• Too short") {
		t.Errorf("Coach prompt missing issues: %q", prompts[3].User)
	}

	st := res.state
	if st.Revisions != 1 || !st.Passed() {
		t.Errorf("Expected one revision and a pass, got %d / %+v", st.Revisions, st.Assessment)
	}
	if st.Topic != "Winter" || st.Requirements != "Use three paragraphs" || st.Grade != 3 {
		t.Errorf("Intake fields changed: %+v", st)
	}
}

func TestRunGivesUpAfterMaxRevisions(t *testing.T) {
	gen := llm.NewScripted(
		"[DONE]\n• One\n• Two",
		"outline",
		`{"score": 40, "passed": false, "issues": ["short"]}`,
		"Try again",
		`{"score": 45, "passed": false, "issues": ["still short"]}`,
	)
	opts := DefaultOptions()
	opts.MaxRevisions = 1
	p := New(gen, demoProfiles(), nil, opts, quietLogger())

	res := runSession(t, p, "Cats", "", "Cats nap.", "Cats nap a lot.")
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	giveUp := res.messages[len(res.messages)-2]
	if giveUp.Phase != string(domain.PhaseGiveUp) {
		t.Errorf("Expected give_up message, got %+v", giveUp)
	}
	if res.state.Passed() || res.state.Revisions != 1 {
		t.Errorf("Unexpected final state %+v", res.state)
	}
}

func TestRunRetriesMalformedReview(t *testing.T) {
	gen := llm.NewScripted(
		"[DONE]\n• a\n• b",
		"outline",
		"I think it is pretty good!",
		`{"score": 88}`,
		"Yay!",
	)
	p := New(gen, fakeProfiles{}, nil, DefaultOptions(), quietLogger())

	res := runSession(t, p, "Trees", "", longDraft)
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	if !res.state.Passed() {
		t.Errorf("Expected derived pass, got %+v", res.state.Assessment)
	}
	prompts := gen.Prompts()
	if !strings.Contains(prompts[3].User, "could not be used") {
		t.Errorf("Retry prompt missing repair note: %q", prompts[3].User)
	}
}

func TestRunSurfacesParseFailure(t *testing.T) {
	gen := llm.NewScripted(
		"[DONE]\n• a",
		"outline",
		"no json",
		"still no json",
	)
	opts := DefaultOptions()
	opts.MaxParseRetries = 1
	p := New(gen, fakeProfiles{}, nil, opts, quietLogger())

	res := runSession(t, p, "Trees", "", longDraft)
	var serr *SessionError
	if !errors.As(res.err, &serr) {
		t.Fatalf("Expected SessionError, got %v", res.err)
	}
	if serr.Kind != KindParse || serr.Phase != domain.PhaseReview {
		t.Errorf("Unexpected error %+v", serr)
	}

	n := len(res.messages)
	if res.messages[n-2].Kind != channel.KindError || res.messages[n-2].Code != "parse_failed" {
		t.Errorf("Expected parse_failed error message, got %+v", res.messages[n-2])
	}
	if !res.messages[n-1].IsSentinel() {
		t.Error("Expected sentinel after error")
	}
}

func TestRunGenerationError(t *testing.T) {
	gen := llm.NewScripted(errors.New("rate limited"))
	p := New(gen, fakeProfiles{}, nil, DefaultOptions(), quietLogger())

	res := runSession(t, p, "Trees", "")
	var serr *SessionError
	if !errors.As(res.err, &serr) || serr.Kind != KindGeneration {
		t.Fatalf("Expected generation error, got %v", res.err)
	}
	if serr.Code() != "generation_failed" {
		t.Errorf("Unexpected code %s", serr.Code())
	}
}

func TestBrainstormTurnLimitUsesAnswers(t *testing.T) {
	gen := llm.NewScripted(
		"What do you see in the sky?",
		"What colors are there?",
		"outline",
		`{"score": 90, "passed": true, "issues": []}`,
		"Nice!",
	)
	opts := DefaultOptions()
	opts.MaxBrainstormTurns = 2
	p := New(gen, fakeProfiles{}, nil, opts, quietLogger())

	res := runSession(t, p, "Sky", "", "Clouds and birds", "Blue and orange", longDraft)
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	ideas := res.state.Ideas
	if len(ideas) != 2 || ideas[0] != "Clouds and birds" || ideas[1] != "Blue and orange" {
		t.Errorf("Expected ideas from answers, got %q", ideas)
	}
}

func TestIntakeDefaultsWithoutProfile(t *testing.T) {
	gen := llm.NewScripted("[DONE]\n• x", "outline", `{"score": 81}`, "ok")
	p := New(gen, fakeProfiles{}, nil, DefaultOptions(), quietLogger())

	res := runSession(t, p, "", "Rivers", "", longDraft)
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	if res.state.Topic != "Rivers" {
		t.Errorf("Expected empty topic to be re-asked, got %q", res.state.Topic)
	}
	if res.state.Grade != domain.DefaultGrade || res.state.Age != 0 {
		t.Errorf("Expected default grade, got grade=%d age=%d", res.state.Grade, res.state.Age)
	}
}

func TestRunProfileError(t *testing.T) {
	p := New(llm.NewScripted(), fakeProfiles{err: errors.New("db down")}, nil, DefaultOptions(), quietLogger())
	res := runSession(t, p, "Rivers", "")
	var serr *SessionError
	if !errors.As(res.err, &serr) || serr.Kind != KindProfile {
		t.Fatalf("Expected profile error, got %v", res.err)
	}
}

func TestRunCancelledWhileAwaiting(t *testing.T) {
	ch := channel.New()
	ctx, cancel := context.WithCancel(context.Background())
	p := New(llm.NewScripted(), fakeProfiles{}, nil, DefaultOptions(), quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, "kid", ch)
		done <- err
	}()

	msgs, err := ch.DrainPrompts(context.Background(), 0)
	if err != nil || len(msgs) != 1 || msgs[0].Kind != channel.KindQuestion {
		t.Fatalf("Expected topic question, got %+v, %v", msgs, err)
	}
	cancel()

	select {
	case err := <-done:
		var serr *SessionError
		if !errors.As(err, &serr) || serr.Kind != KindCancelled {
			t.Errorf("Expected cancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStepUnknownPhase(t *testing.T) {
	p := New(llm.NewScripted(), fakeProfiles{}, nil, DefaultOptions(), quietLogger())
	_, err := p.Step(context.Background(), channel.New(), domain.PhaseDone, &State{})
	var serr *SessionError
	if !errors.As(err, &serr) || serr.Kind != KindInternal {
		t.Errorf("Expected internal error, got %v", err)
	}
}

func TestStepRequiresAssessment(t *testing.T) {
	p := New(llm.NewScripted(), fakeProfiles{}, nil, DefaultOptions(), quietLogger())
	for _, phase := range []domain.Phase{domain.PhaseCoach, domain.PhasePraise} {
		next, err := p.Step(context.Background(), channel.New(), phase, &State{})
		var serr *SessionError
		if !errors.As(err, &serr) || serr.Kind != KindInternal || serr.Phase != phase {
			t.Errorf("%s: expected internal error, got %v", phase, err)
		}
		if next != phase {
			t.Errorf("%s: expected to stay in phase, got %s", phase, next)
		}
	}
}
