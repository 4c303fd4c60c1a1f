package coach

import (
	"strings"
	"testing"

	"github.com/ashureev/writepal/internal/domain"
)

func TestParseGuideReplyDone(t *testing.T) {
	raw := "[DONE]\n• My dog runs fast\n- He loves the park\n  * Bath time is funny  \n\n"
	res := ParseGuideReply(raw)
	if !res.OK() {
		t.Fatalf("Expected success, got %v", res.Err)
	}
	want := []string{"My dog runs fast", "He loves the park", "Bath time is funny"}
	if !res.Value.Done {
		t.Fatal("Expected Done")
	}
	if len(res.Value.Ideas) != len(want) {
		t.Fatalf("Expected %d ideas, got %d: %q", len(want), len(res.Value.Ideas), res.Value.Ideas)
	}
	for i := range want {
		if res.Value.Ideas[i] != want[i] {
			t.Errorf("Idea %d: expected %q, got %q", i, want[i], res.Value.Ideas[i])
		}
	}
}

func TestParseGuideReplyDoneSkipsHeading(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"[DONE] Here are your ideas:\n• Running\n• Fetch\n• Naps", []string{"Running", "Fetch", "Naps"}},
		{"[DONE] • Running\n• Fetch\n• Naps", []string{"Running", "Fetch", "Naps"}},
	}
	for _, tt := range tests {
		res := ParseGuideReply(tt.raw)
		if !res.OK() {
			t.Fatalf("Expected success for %q, got %v", tt.raw, res.Err)
		}
		got := res.Value.Ideas
		if len(got) != len(tt.want) {
			t.Fatalf("Expected %d ideas for %q, got %q", len(tt.want), tt.raw, got)
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Idea %d: expected %q, got %q", i, tt.want[i], got[i])
			}
		}
	}
}

func TestParseGuideReplyQuestion(t *testing.T) {
	res := ParseGuideReply("  What is your favorite thing about dogs?\n")
	if !res.OK() {
		t.Fatalf("Expected success, got %v", res.Err)
	}
	if res.Value.Done {
		t.Error("Question parsed as done")
	}
	if res.Value.Question != "What is your favorite thing about dogs?" {
		t.Errorf("Unexpected question %q", res.Value.Question)
	}
}

func TestParseGuideReplyFailures(t *testing.T) {
	for _, raw := range []string{"", "   \n", "[DONE]\n\n•\n"} {
		res := ParseGuideReply(raw)
		if res.OK() {
			t.Errorf("Expected failure for %q", raw)
			continue
		}
		if res.Err.Phase != domain.PhaseBrainstorm {
			t.Errorf("Expected brainstorm phase, got %s", res.Err.Phase)
		}
		if _, err := res.Unwrap(); err == nil {
			t.Errorf("Unwrap returned nil error for %q", raw)
		}
	}
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		score   int
		passed  bool
		nIssues int
	}{
		{
			name:   "plain object",
			raw:    `{"score": 91, "passed": true, "issues": []}`,
			wantOK: true, score: 91, passed: true,
		},
		{
			name:   "prose around object",
			raw:    "Here is my review:\n```json\n{\"score\": 72, \"passed\": false, \"issues\": [\"Too short\", \"Comma splice\"]}\n```\nGood luck!",
			wantOK: true, score: 72, passed: false, nIssues: 2,
		},
		{
			name:   "passed derived from score",
			raw:    `{"score": 80, "issues": []}`,
			wantOK: true, score: 80, passed: true,
		},
		{
			name:   "fractional score rounds",
			raw:    `{"score": 79.6, "issues": ["x"]}`,
			wantOK: true, score: 80, passed: true, nIssues: 1,
		},
		{
			name:   "explicit passed wins",
			raw:    `{"score": 95, "passed": false, "issues": [{"issue": "Off topic"}]}`,
			wantOK: true, score: 95, passed: false, nIssues: 1,
		},
		{name: "no object", raw: "I liked it a lot!"},
		{name: "missing score", raw: `{"passed": true}`},
		{name: "score out of range", raw: `{"score": 140}`},
		{name: "broken json", raw: `{"score": 90, "issues": [}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseAssessment(tt.raw, 80)
			if res.OK() != tt.wantOK {
				t.Fatalf("Expected ok=%v, got err %v", tt.wantOK, res.Err)
			}
			if !tt.wantOK {
				return
			}
			a := res.Value
			if a.Score != tt.score || a.Passed != tt.passed || len(a.Issues) != tt.nIssues {
				t.Errorf("Got %+v", a)
			}
		})
	}
}

func TestGuardAttribution(t *testing.T) {
	transcript := []domain.QA{
		{Question: "What do you like about summer?", Answer: "Swimming with my cousins"},
	}
	tests := []struct {
		name     string
		question string
		hedged   bool
	}{
		{"no claim", "What else do you do in summer?", false},
		{"true claim", "You mentioned swimming. Where do you swim?", false},
		{"plural tolerated", "You mentioned your cousin. What is their name?", false},
		{"false claim", "You mentioned camping. What was your favorite part?", true},
		{"claim mid sentence", "Earlier you mentioned that ice cream is your favorite. Why?", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guardAttribution(tt.question, transcript)
			if hedged := strings.HasPrefix(got, hedgePrefix); hedged != tt.hedged {
				t.Errorf("Expected hedged=%v, got %q", tt.hedged, got)
			}
		})
	}
}

func TestIdeasFromAnswers(t *testing.T) {
	ideas := ideasFromAnswers([]domain.QA{
		{Answer: "I like rain"},
		{Answer: "  "},
		{Answer: "I like rain"},
		{Answer: "Puddles are fun"},
	})
	if len(ideas) != 2 || ideas[0] != "I like rain" || ideas[1] != "Puddles are fun" {
		t.Errorf("Unexpected ideas %q", ideas)
	}
}

func TestAssessmentSchemaMentionsFields(t *testing.T) {
	schema := assessmentSchemaJSON()
	for _, field := range []string{"score", "passed", "issues"} {
		if !strings.Contains(schema, `"`+field+`"`) {
			t.Errorf("Schema missing %s: %s", field, schema)
		}
	}
}
