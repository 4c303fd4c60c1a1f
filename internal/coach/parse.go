package coach

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/samber/lo"
)

// DoneMarker opens a brainstorm reply that ends the conversation.
const DoneMarker = "[DONE]"

const bulletChars = "•-*"

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// GuideReply is a parsed brainstorm continuation: either the next question
// or the final idea list.
type GuideReply struct {
	Done     bool
	Question string
	Ideas    []string
}

// ParseGuideReply interprets one brainstorm generation.
func ParseGuideReply(raw string) Result[GuideReply] {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Fail[GuideReply](domain.PhaseBrainstorm, raw, "empty reply")
	}
	if !strings.HasPrefix(text, DoneMarker) {
		return Ok(GuideReply{Question: text})
	}

	// The marker line is a heading unless it carries a bullet itself.
	lines := strings.Split(text, "\n")
	head := strings.TrimSpace(strings.TrimPrefix(lines[0], DoneMarker))
	lines = lines[1:]
	if head != "" && strings.ContainsRune(bulletChars, []rune(head)[0]) {
		lines = append([]string{head}, lines...)
	}
	ideas := lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		idea := StripBullet(line)
		return idea, idea != ""
	})
	if len(ideas) == 0 {
		return Fail[GuideReply](domain.PhaseBrainstorm, raw, DoneMarker+" without any ideas")
	}
	return Ok(GuideReply{Done: true, Ideas: ideas})
}

// StripBullet removes leading bullet characters and surrounding whitespace.
func StripBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), bulletChars+" \t"))
}

type rawAssessment struct {
	Score  *json.Number `json:"score"`
	Passed *bool        `json:"passed"`
	Issues []any        `json:"issues"`
}

// ParseAssessment extracts the review JSON object from raw. A missing passed
// field is derived from passScore.
func ParseAssessment(raw string, passScore int) Result[domain.Assessment] {
	obj := jsonObjectPattern.FindString(raw)
	if obj == "" {
		return Fail[domain.Assessment](domain.PhaseReview, raw, "no JSON object found")
	}

	var ra rawAssessment
	if err := json.Unmarshal([]byte(obj), &ra); err != nil {
		return Fail[domain.Assessment](domain.PhaseReview, raw, fmt.Sprintf("invalid JSON: %v", err))
	}
	if ra.Score == nil {
		return Fail[domain.Assessment](domain.PhaseReview, raw, "missing score")
	}
	f, err := ra.Score.Float64()
	if err != nil {
		return Fail[domain.Assessment](domain.PhaseReview, raw, fmt.Sprintf("score is not a number: %v", err))
	}
	score := int(math.Round(f))
	if score < 0 || score > 100 {
		return Fail[domain.Assessment](domain.PhaseReview, raw, fmt.Sprintf("score %d outside 0-100", score))
	}

	passed := score >= passScore
	if ra.Passed != nil {
		passed = *ra.Passed
	}
	issues := lo.FilterMap(ra.Issues, func(v any, _ int) (string, bool) {
		s := strings.TrimSpace(issueText(v))
		return s, s != ""
	})
	return Ok(domain.Assessment{Score: score, Passed: passed, Issues: issues})
}

func issueText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, key := range []string{"issue", "description", "message", "text"} {
			if s, ok := t[key].(string); ok {
				return s
			}
		}
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// parseNonEmpty accepts any non-blank generation.
func parseNonEmpty(phase domain.Phase) func(string) Result[string] {
	return func(raw string) Result[string] {
		text := strings.TrimSpace(raw)
		if text == "" {
			return Fail[string](phase, raw, "empty reply")
		}
		return Ok(text)
	}
}

// ideasFromAnswers turns the learner's brainstorm answers into ideas when the
// generator never finished on its own.
func ideasFromAnswers(transcript []domain.QA) []string {
	answers := lo.FilterMap(transcript, func(qa domain.QA, _ int) (string, bool) {
		a := strings.TrimSpace(qa.Answer)
		return a, a != ""
	})
	return lo.Uniq(answers)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
