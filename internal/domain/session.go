package domain

// Phase names one step of the coaching pipeline.
type Phase string

const (
	PhaseIntake       Phase = "intake"
	PhaseBrainstorm   Phase = "brainstorm"
	PhaseOutline      Phase = "outline"
	PhaseCollectDraft Phase = "collect_draft"
	PhaseReview       Phase = "review"
	PhaseCoach        Phase = "coach"
	PhasePraise       Phase = "praise"
	PhaseGiveUp       Phase = "give_up"
	PhaseDone         Phase = "done"
)

// Terminal reports whether no further phase follows p.
func (p Phase) Terminal() bool {
	return p == PhaseDone
}

// Assessment is the structured result of the review phase.
type Assessment struct {
	Score  int      `json:"score"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// QA is one brainstorming exchange.
type QA struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

// EssayState is threaded through every phase of a session.
type EssayState struct {
	UserID       string      `json:"user_id"`
	Topic        string      `json:"topic"`
	Requirements string      `json:"requirements"`
	Profile      Profile     `json:"profile"`
	Grade        int         `json:"grade"`
	Age          int         `json:"age"`
	Guide        GradeGuide  `json:"guide"`
	Ideas        []string    `json:"ideas"`
	Transcript   []QA        `json:"transcript"`
	Outline      string      `json:"outline"`
	Draft        string      `json:"draft"`
	Assessment   *Assessment `json:"assessment,omitempty"`
	Revisions    int         `json:"revisions"`
}

// Passed reports whether the latest assessment accepted the draft.
func (s *EssayState) Passed() bool {
	return s.Assessment != nil && s.Assessment.Passed
}
