// Package picker lists problems to solve and opens the chat for the chosen one.
package picker

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screen"
	"github.com/abhisek/codecoach/internal/screens/chat"
	"github.com/abhisek/codecoach/internal/tutor"
	"github.com/abhisek/codecoach/internal/ui/layout"
	"github.com/abhisek/codecoach/internal/ui/theme"
)

// Lister fetches the problem list.
type Lister interface {
	ListProblems(ctx context.Context) ([]problem.Problem, error)
}

type loadedMsg struct {
	problems []problem.Problem
	err      error
}

// PickerScreen shows every problem in solve order.
type PickerScreen struct {
	lister   Lister
	svc      *tutor.Service
	problems []problem.Problem
	selected int
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*PickerScreen)(nil)
var _ screen.KeyHintProvider = (*PickerScreen)(nil)
var _ screen.Resumer = (*PickerScreen)(nil)

// New creates a new PickerScreen.
func New(lister Lister, svc *tutor.Service) *PickerScreen {
	return &PickerScreen{lister: lister, svc: svc}
}

func (s *PickerScreen) Init() tea.Cmd {
	return s.load()
}

// Resume reloads the list so message counts stay current.
func (s *PickerScreen) Resume() tea.Cmd {
	return s.load()
}

func (s *PickerScreen) load() tea.Cmd {
	return func() tea.Msg {
		list, err := s.lister.ListProblems(context.Background())
		if err == nil {
			problem.SortByOrder(list)
		}
		return loadedMsg{problems: list, err: err}
	}
}

func (s *PickerScreen) Title() string {
	return "Problems"
}

func (s *PickerScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Solve"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "R", Description: "Reload"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *PickerScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loaded = true
		if msg.err != nil {
			s.errMsg = msg.err.Error()
			return s, nil
		}
		s.errMsg = ""
		s.problems = msg.problems
		if s.selected >= len(s.problems) {
			s.selected = max(len(s.problems)-1, 0)
		}
		return s, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.problems)-1 {
				s.selected++
			}
		case "r":
			return s, s.load()
		case "enter":
			if s.selected < len(s.problems) {
				p := s.problems[s.selected]
				return s, func() tea.Msg {
					return router.PushScreenMsg{Screen: chat.New(s.svc, p)}
				}
			}
		}
	}
	return s, nil
}

func (s *PickerScreen) View(width, height int) string {
	if !s.loaded {
		return layout.Centered(width, "Loading problems...")
	}
	if s.errMsg != "" {
		return layout.ErrorLine(width, "\n\nError: "+s.errMsg)
	}
	if len(s.problems) == 0 {
		return layout.Centered(width, "No problems yet. Add one from Manage problems.")
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, p := range s.problems {
		prefix := "  "
		style := theme.Unselected
		if i == s.selected {
			prefix = "▸ "
			style = theme.Selected
		}

		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s%2d. %s", prefix, i+1, title)
		if n := len(s.svc.Conversations().Turns(p.ID)); n > 0 {
			line += theme.Hint.Render(fmt.Sprintf("  %d messages", n))
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Left, "  "+style.Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}
