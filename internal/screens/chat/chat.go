// Package chat is the tutoring conversation for one problem.
package chat

import (
	"context"
	"errors"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/prompt"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screen"
	"github.com/abhisek/codecoach/internal/tutor"
	"github.com/abhisek/codecoach/internal/ui/components"
	"github.com/abhisek/codecoach/internal/ui/layout"
	"github.com/abhisek/codecoach/internal/ui/theme"
)

// pumpMsg carries one step of a reply.
type pumpMsg struct {
	turn  *tutor.Turn
	delta string
	done  bool
	err   error
}

// ChatScreen shows the conversation for one problem and sends new messages.
type ChatScreen struct {
	svc       *tutor.Service
	problem   problem.Problem
	input     components.TextInput
	vp        viewport.Model
	mode      prompt.Mode
	streaming bool
	turn      *tutor.Turn
	errMsg    string
	follow    bool
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)
var _ screen.EscCapturer = (*ChatScreen)(nil)
var _ screen.StatusProvider = (*ChatScreen)(nil)

// New creates a chat screen for p. Replies stream by default.
func New(svc *tutor.Service, p problem.Problem) *ChatScreen {
	return &ChatScreen{
		svc:       svc,
		problem:   p,
		input:     components.NewTextInput("Ask a question, or paste code and press Tab to grade it...", 0),
		vp:        viewport.New(),
		streaming: true,
		follow:    true,
	}
}

func (s *ChatScreen) Init() tea.Cmd {
	return s.input.Init()
}

func (s *ChatScreen) Title() string {
	if s.problem.Title == "" {
		return "Chat"
	}
	return s.problem.Title
}

// Status shows the mode and delivery settings in the header.
func (s *ChatScreen) Status() string {
	delivery := "stream"
	if !s.streaming {
		delivery = "whole reply"
	}
	return s.mode.String() + " · " + delivery
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	mode := "Grade code"
	if s.mode == prompt.Grading {
		mode = "Ask tutor"
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Tab", Description: mode},
		{Key: "Ctrl+S", Description: "Streaming"},
		{Key: "Ctrl+L", Description: "Clear"},
		{Key: "PgUp/PgDn", Description: "Scroll"},
		{Key: "Esc", Description: "Back"},
	}
}

// CapturesEsc lets the screen stop an in-flight reply before leaving.
func (s *ChatScreen) CapturesEsc() bool {
	return true
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case pumpMsg:
		return s, s.handlePump(msg)

	case tea.KeyPressMsg:
		switch msg.String() {
		case "esc":
			s.cancel()
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "enter":
			return s, s.send()
		case "tab":
			if s.mode == prompt.Tutor {
				s.mode = prompt.Grading
			} else {
				s.mode = prompt.Tutor
			}
			return s, nil
		case "ctrl+s":
			s.streaming = !s.streaming
			return s, nil
		case "ctrl+l":
			s.cancel()
			if err := s.svc.Conversations().Clear(s.problem.ID); err != nil {
				s.errMsg = "History cleared for this session only: " + err.Error()
			} else {
				s.errMsg = ""
			}
			s.follow = true
			return s, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			s.vp, cmd = s.vp.Update(msg)
			s.follow = s.vp.AtBottom()
			return s, cmd
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) send() tea.Cmd {
	if s.input.Blank() {
		return nil
	}
	turn, err := s.svc.Begin(context.Background(), tutor.Request{
		Problem:   s.problem,
		Message:   s.input.Value(),
		Mode:      s.mode,
		Streaming: s.streaming,
	})
	if err != nil {
		if !errors.Is(err, conversation.ErrEmptyInput) {
			s.errMsg = err.Error()
		}
		return nil
	}

	s.input.Reset()
	s.errMsg = ""
	s.follow = true
	s.turn = turn
	return pump(turn)
}

func pump(t *tutor.Turn) tea.Cmd {
	return func() tea.Msg {
		delta, done, err := t.Pump()
		return pumpMsg{turn: t, delta: delta, done: done, err: err}
	}
}

func (s *ChatScreen) handlePump(msg pumpMsg) tea.Cmd {
	if !msg.done {
		return pump(msg.turn)
	}
	if msg.turn != s.turn {
		return nil
	}
	s.turn = nil

	var persist *conversation.PersistError
	switch {
	case msg.err == nil, errors.Is(msg.err, context.Canceled):
	case errors.As(msg.err, &persist):
		s.errMsg = "Reply not saved: " + persist.Err.Error()
	default:
		s.errMsg = msg.err.Error()
	}
	return nil
}

func (s *ChatScreen) cancel() {
	if s.turn != nil {
		s.turn.Cancel()
		s.turn = nil
	}
}

func (s *ChatScreen) View(width, height int) string {
	s.input.SetWidth(width - 8)
	inputBox := theme.FocusedCard.Width(width - 2).Render(s.input.View())

	var status string
	if s.errMsg != "" {
		status = theme.ErrorText.Render("  " + s.errMsg)
	} else if s.turn != nil {
		status = theme.Hint.Render("  tutor is typing...")
	}

	badge := theme.TutorBadge.Render("TUTOR")
	if s.mode == prompt.Grading {
		badge = theme.GradingBadge.Render("GRADING")
	}
	bar := "  " + badge + "  " + status

	vpHeight := height - lipgloss.Height(inputBox) - lipgloss.Height(bar) - 1
	s.vp.SetWidth(width)
	s.vp.SetHeight(max(vpHeight, 1))
	s.vp.SetContent(s.renderTurns(width - 4))
	if s.follow {
		s.vp.GotoBottom()
	}

	return lipgloss.JoinVertical(lipgloss.Left, s.vp.View(), bar, inputBox)
}

func (s *ChatScreen) renderTurns(width int) string {
	turns := s.svc.Conversations().Turns(s.problem.ID)
	if len(turns) == 0 {
		intro := s.problem.Description
		if intro == "" {
			intro = "No description."
		}
		return theme.Hint.Width(width).Render("\n  " + intro + "\n\n  Ask anything about this problem. The tutor answers with questions, not solutions.")
	}

	body := lipgloss.NewStyle().Foreground(theme.Text).Width(width).PaddingLeft(2)
	var b strings.Builder
	for i, t := range turns {
		b.WriteString("\n")
		if t.Role == conversation.RoleUser {
			b.WriteString("  " + theme.UserLabel.Render("You"))
		} else {
			b.WriteString("  " + theme.TutorLabel.Render("Tutor"))
		}
		b.WriteString("\n")

		content := t.Content
		if content == "" && t.Role == conversation.RoleAssistant {
			// Only the reply being received is still pending.
			if i == len(turns)-1 && s.turn != nil {
				content = "…"
			} else {
				content = "(no reply)"
			}
		}
		b.WriteString(body.Render(content))
		b.WriteString("\n")
	}
	return b.String()
}
