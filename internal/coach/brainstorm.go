package coach

import (
	"context"
	"strings"
	"unicode"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

const (
	attributionPhrase = "you mentioned"
	hedgePrefix       = "I might be mistaken, but "
)

// attributionStopWords are skipped when looking for the claimed word.
var attributionStopWords = map[string]bool{
	"that": true, "the": true, "a": true, "an": true, "your": true, "you": true,
	"how": true, "about": true, "some": true, "it": true, "is": true, "was": true,
}

func (p *Pipeline) brainstorm(ctx context.Context, conv Conversation, st *State) (domain.Phase, error) {
	const phase = domain.PhaseBrainstorm

	for turn := 0; turn < p.opts.MaxBrainstormTurns; turn++ {
		reply, err := generateParsed(ctx, p, phase, brainstormPrompt(st), ParseGuideReply)
		if err != nil {
			return phase, err
		}
		if reply.Done {
			st.Ideas = reply.Ideas
			return domain.PhaseOutline, p.sayIdeas(conv, st)
		}

		question := guardAttribution(reply.Question, st.Transcript)
		answer, err := p.ask(ctx, conv, phase, question, false)
		if err != nil {
			return phase, err
		}
		st.Transcript = append(st.Transcript, domain.QA{Question: question, Answer: strings.TrimSpace(answer)})
	}

	p.logger.Info("brainstorm turn limit reached", "user_id", st.UserID, "turns", p.opts.MaxBrainstormTurns)
	st.Ideas = ideasFromAnswers(st.Transcript)
	if len(st.Ideas) == 0 {
		st.Ideas = []string{st.Topic}
	}
	if err := p.say(conv, phase, "You have shared lots of great thoughts! Let's build your essay from what you told me."); err != nil {
		return phase, err
	}
	return domain.PhaseOutline, p.sayIdeas(conv, st)
}

func (p *Pipeline) sayIdeas(conv Conversation, st *State) error {
	bullets := lo.Map(st.Ideas, func(idea string, _ int) string {
		return "• " + idea
	})
	return p.say(conv, domain.PhaseBrainstorm, "Here are your ideas:\n"+strings.Join(bullets, "\n"))
}

// guardAttribution hedges a question that claims the learner said something
// that does not appear in any of their answers.
func guardAttribution(question string, transcript []domain.QA) string {
	lower := strings.ToLower(question)
	idx := strings.Index(lower, attributionPhrase)
	if idx < 0 {
		return question
	}
	claimed := claimedWord(lower[idx+len(attributionPhrase):])
	if claimed == "" {
		return question
	}

	for _, qa := range transcript {
		for _, w := range words(qa.Answer) {
			if wordsMatch(claimed, w) {
				return question
			}
		}
	}
	return hedgePrefix + lowerFirst(question)
}

func claimedWord(rest string) string {
	for _, w := range words(rest) {
		if !attributionStopWords[w] {
			return w
		}
	}
	return ""
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// wordsMatch tolerates plurals and small typos.
func wordsMatch(claimed, said string) bool {
	if claimed == said {
		return true
	}
	if !fuzzy.MatchFold(claimed, said) && !fuzzy.MatchFold(said, claimed) {
		return false
	}
	return fuzzy.LevenshteinDistance(claimed, said) <= 2
}

func lowerFirst(s string) string {
	if s == "" || strings.HasPrefix(s, "I ") {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
