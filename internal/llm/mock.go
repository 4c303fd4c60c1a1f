package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mock is a deterministic offline generator for demos and local development.
// It keys its answers off the prompt task and a few markers the coach writes
// into its prompts.
type Mock struct {
	// Questions is the number of brainstorm questions asked before [DONE].
	Questions int
}

var (
	mockStudentLine = regexp.MustCompile(`(?m)^Student:`)
	mockWordCount   = regexp.MustCompile(`(?m)^Actual word count:\s*(\d+)`)
	mockMinWords    = regexp.MustCompile(`(?m)^Minimum words:\s*(\d+)`)
)

var mockQuestions = []string{
	"What is the first thing that comes to mind when you think about your topic?",
	"Can you tell me about a time you saw or did something connected to it?",
	"How did that make you feel, and why?",
	"What would you want a friend to learn from your essay?",
}

// NewMock returns a mock that asks three brainstorm questions.
func NewMock() *Mock {
	return &Mock{Questions: 3}
}

// Generate returns a canned answer for the prompt's task.
func (m *Mock) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch prompt.Task {
	case TaskBrainstorm:
		return m.brainstorm(prompt.User), nil
	case TaskOutline:
		return "1. Introduction: say what your essay is about.\n" +
			"2. Body: share your favorite idea with one example.\n" +
			"3. Conclusion: tell the reader what you learned.", nil
	case TaskReview:
		return m.review(prompt.User), nil
	case TaskCoach:
		return "You have great ideas! Try adding one more detail to each paragraph and read it out loud to check each sentence ends with a period.", nil
	case TaskPraise:
		return "Wonderful work! Your essay is clear and full of your own ideas.", nil
	default:
		return "Okay!", nil
	}
}

func (m *Mock) brainstorm(user string) string {
	answered := len(mockStudentLine.FindAllStringIndex(user, -1))
	if answered < m.Questions {
		return mockQuestions[answered%len(mockQuestions)]
	}
	return "[DONE]\n- What the topic means to me\n- A time I experienced it\n- What I learned from it"
}

func (m *Mock) review(user string) string {
	words := matchInt(mockWordCount, user)
	minWords := matchInt(mockMinWords, user)
	if words >= minWords && words > 0 {
		return `{"score": 88, "passed": true, "issues": []}`
	}
	return fmt.Sprintf(`{"score": 65, "passed": false, "issues": ["Your essay has %d words; aim for at least %d.", "Add an example to your body paragraph."]}`, words, minWords)
}

func matchInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil {
		return 0
	}
	return n
}
