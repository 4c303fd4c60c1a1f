package coach

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/ashureev/writepal/internal/llm"
	"github.com/invopop/jsonschema"
	"github.com/samber/lo"
)

const (
	guideSystem = "You are a friendly, encouraging K-12 writing coach. " +
		"You use light, friendly Socratic questions to study the topic and keep the learner engaged. " +
		"You always ask one clear question at a time."
	outlineSystem  = "You are a veteran writing tutor who organises information clearly."
	reviewSystem   = "You are an exacting English teacher with a fair but firm rubric."
	coachSystem    = "You give actionable, motivating feedback when a draft misses the mark. Encouraging but precise."
	progressSystem = "You compare current work to the student's history to show growth."
)

// assessmentSchema documents the object the reviewer must return.
type assessmentSchema struct {
	Score  int      `json:"score" jsonschema:"required,minimum=0,maximum=100,description=Overall score from 0 to 100"`
	Passed bool     `json:"passed" jsonschema:"required,description=Whether the draft meets the grade expectations"`
	Issues []string `json:"issues" jsonschema:"required,description=Concrete problems a young writer can fix"`
}

var assessmentSchemaJSON = sync.OnceValue(func() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&assessmentSchema{})
	data, err := json.Marshal(schema)
	if err != nil {
		return `{"score":0,"passed":false,"issues":[]}`
	}
	return string(data)
})

func formatTranscript(transcript []domain.QA) string {
	if len(transcript) == 0 {
		return "(nothing yet)"
	}
	var sb strings.Builder
	for _, qa := range transcript {
		fmt.Fprintf(&sb, "Coach: %s\nStudent: %s\n", qa.Question, qa.Answer)
	}
	return sb.String()
}

func brainstormPrompt(st *State) llm.Prompt {
	profile, _ := json.Marshal(st.Profile)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are helping the student (grade %d, age %d) prepare an essay on **%s**.\n", st.Grade, st.Age, st.Topic)
	if st.Requirements != "" {
		fmt.Fprintf(&sb, "Special requirements: %s\n", st.Requirements)
	}
	sb.WriteString("Strict rule: Ask about ONLY what the student has already said or what is common knowledge about the topic. ")
	sb.WriteString("If you suggest a new angle, make it explicit with: 'Some people also ____. Do you think so?' ")
	sb.WriteString("Never claim the student 'mentioned' something unless the exact words appear in the transcript you see.\n")
	fmt.Fprintf(&sb, "Student profile:\n%s\n\n", profile)
	fmt.Fprintf(&sb, "Conversation so far:\n%s\n", formatTranscript(st.Transcript))
	sb.WriteString("Ask ONE open question that will elicit details, feelings, examples, or reasons.\n")
	fmt.Fprintf(&sb, "When you believe you have at least %d rich ideas for the body paragraphs, answer EXACTLY in this format:\n", st.Guide.Paragraphs)
	fmt.Fprintf(&sb, "%s\n• idea 1\n• idea 2\n• idea 3 ...\n", DoneMarker)
	sb.WriteString("Make sure the ideas loyally reflect the student's input.\n")

	return llm.Prompt{Task: llm.TaskBrainstorm, System: guideSystem, User: sb.String()}
}

func outlinePrompt(st *State) llm.Prompt {
	numbered := lo.Map(st.Ideas, func(idea string, i int) string {
		return fmt.Sprintf("%d. %s", i+1, idea)
	})
	user := fmt.Sprintf(
		"Create a numbered outline for a grade-%d student writing about %q. "+
			"Limit the whole essay to about %d words. "+
			"Use an intro, one body paragraph per idea, and a conclusion. "+
			"Give each paragraph a kid-friendly hint (15 words or fewer).\n\nIdeas:\n%s",
		st.Grade, st.Topic, st.Guide.MaxWords, strings.Join(numbered, "\n"))
	return llm.Prompt{Task: llm.TaskOutline, System: outlineSystem, User: user}
}

func reviewPrompt(st *State) llm.Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluate the draft for a grade-%d writer.\n", st.Grade)
	fmt.Fprintf(&sb, "Topic: %s\n", st.Topic)
	if st.Requirements != "" {
		fmt.Fprintf(&sb, "Special requirements: %s\n", st.Requirements)
	}
	fmt.Fprintf(&sb, "Expected length: %d-%d words in about %d paragraphs.\n", st.Guide.MinWords, st.Guide.MaxWords, st.Guide.Paragraphs)
	fmt.Fprintf(&sb, "Minimum words: %d\n", st.Guide.MinWords)
	fmt.Fprintf(&sb, "Actual word count: %d\n", wordCount(st.Draft))
	sb.WriteString("Score for grammar, clarity, structure, and topic compliance. Score 0-100.\n")
	fmt.Fprintf(&sb, "Return only a JSON object matching this schema:\n%s\n\n", assessmentSchemaJSON())
	sb.WriteString("Draft:\n")
	sb.WriteString(st.Draft)

	return llm.Prompt{Task: llm.TaskReview, System: reviewSystem, User: sb.String()}
}

func coachPrompt(st *State) llm.Prompt {
	issues := lo.Map(st.Assessment.Issues, func(issue string, _ int) string {
		return "• " + issue
	})
	if len(issues) == 0 {
		issues = []string{"• The draft did not yet meet the expectations for this grade."}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "A grade-%d student (age %d) wrote a draft about %q that scored %d.\n", st.Grade, st.Age, st.Topic, st.Assessment.Score)
	if len(st.Profile.WeakAreas) > 0 {
		fmt.Fprintf(&sb, "Known weak areas: %s.\n", strings.Join(st.Profile.WeakAreas, ", "))
	}
	fmt.Fprintf(&sb, "The draft has these issues:\n%s\nGive encouraging, concrete advice.", strings.Join(issues, "\n"))
	return llm.Prompt{Task: llm.TaskCoach, System: coachSystem, User: sb.String()}
}

func praisePrompt(st *State, last int, hasLast bool) llm.Prompt {
	score := st.Assessment.Score
	var user string
	switch {
	case !hasLast:
		user = fmt.Sprintf("This is the student's first recorded essay and it scored %d. Congratulate them warmly.", score)
	case score > last:
		user = fmt.Sprintf("Old best: %d, new score: %d. Congratulate and highlight the +%d improvement.", last, score, score-last)
	default:
		user = fmt.Sprintf("Last score: %d, new score: %d. Congratulate the student on passing and encourage them to keep practicing.", last, score)
	}
	user += fmt.Sprintf(" The essay was about %q.", st.Topic)
	return llm.Prompt{Task: llm.TaskPraise, System: progressSystem, User: user}
}

// repairPrompt asks the generator to fix its previous answer.
func repairPrompt(base llm.Prompt, perr *ParseError) llm.Prompt {
	note := fmt.Sprintf("\n\nYour previous answer could not be used (%s). ", perr.Reason)
	switch perr.Phase {
	case domain.PhaseReview:
		note += "Reply with only the JSON object, no other text."
	case domain.PhaseBrainstorm:
		note += fmt.Sprintf("Either ask one question, or start with %s followed by one idea per line.", DoneMarker)
	default:
		note += "Please answer again."
	}
	base.User += note
	return base
}
