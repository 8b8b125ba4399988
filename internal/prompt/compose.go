// Package prompt builds the text sent to the completion API for one learner
// message.
package prompt

import (
	"strings"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
)

// SummaryBudget is the maximum length, in characters, of the prior-turn
// summary included in tutor prompts.
const SummaryBudget = 500

// Mode selects the instructional template.
type Mode int

const (
	// Tutor guides the learner with questions.
	Tutor Mode = iota
	// Grading assesses submitted code against the reference solution.
	Grading
)

func (m Mode) String() string {
	if m == Grading {
		return "grading"
	}
	return "tutor"
}

const tutorPreamble = `You are a programming tutor helping a learner solve the problem below.
Rules:
- Never reveal the full reference solution code, even if asked.
- Answer with Socratic counter-questions that lead the learner to the next step.
- Keep every reply short: a few sentences at most.`

const gradingPreamble = `You are grading a learner's code for the problem below against the reference solution.
Reply with:
- Completion: an estimated completion percentage.
- Gaps: what is missing or incorrect.
- Next steps: what the learner should do next.
- Praise: one brief line on what was done well.
Never paste the full reference solution.`

// Input is everything Compose needs.
type Input struct {
	Mode    Mode
	Problem problem.Problem
	// History holds the conversation turns before Message.
	History []conversation.Turn
	Message string
}

// Compose renders the prompt for in. It has no side effects.
func Compose(in Input) string {
	var b strings.Builder

	preamble := tutorPreamble
	if in.Mode == Grading {
		preamble = gradingPreamble
	}
	b.WriteString(preamble)

	section(&b, "Problem", in.Problem.Description)
	section(&b, "Reference solution", in.Problem.SolutionCode)

	if in.Mode == Tutor {
		section(&b, "Learner's earlier messages", Summary(in.History))
		section(&b, "Learner's new message", in.Message)
	} else {
		section(&b, "Learner's submission", in.Message)
	}

	return b.String()
}

// Summary joins the text of every user turn with newlines, oldest first.
// When the result exceeds SummaryBudget characters only the trailing
// SummaryBudget characters are kept.
func Summary(turns []conversation.Turn) string {
	var parts []string
	for _, t := range turns {
		if t.Role == conversation.RoleUser {
			parts = append(parts, t.Content)
		}
	}
	joined := strings.Join(parts, "\n")

	runes := []rune(joined)
	if len(runes) <= SummaryBudget {
		return joined
	}
	return string(runes[len(runes)-SummaryBudget:])
}

func section(b *strings.Builder, title, body string) {
	b.WriteString("\n\n## ")
	b.WriteString(title)
	b.WriteString("\n")
	if strings.TrimSpace(body) == "" {
		b.WriteString("(none)")
		return
	}
	b.WriteString(body)
}
