// Package manager is the author view: add, edit, delete and reorder
// problems.
package manager

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/reorder"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screen"
	"github.com/abhisek/codecoach/internal/screens/editor"
	"github.com/abhisek/codecoach/internal/ui/components"
	"github.com/abhisek/codecoach/internal/ui/layout"
	"github.com/abhisek/codecoach/internal/ui/theme"
)

// API is the problem store used by the manager.
type API interface {
	editor.Store
	DeleteProblem(ctx context.Context, id string) error
}

type refreshedMsg struct{ err error }

type movedMsg struct {
	id  string
	err error
}

type deletedMsg struct{ err error }

// ManagerScreen lists problems in order. A grabbed problem is dropped onto
// the row under the cursor.
type ManagerScreen struct {
	api  API
	ctrl *reorder.Controller

	selected int
	grabbed  string
	moving   bool
	loaded   bool
	errMsg   string

	confirm  *components.Confirm
	deleteID string
}

var _ screen.Screen = (*ManagerScreen)(nil)
var _ screen.KeyHintProvider = (*ManagerScreen)(nil)
var _ screen.Resumer = (*ManagerScreen)(nil)
var _ screen.EscCapturer = (*ManagerScreen)(nil)

// New creates a manager backed by api, ordering through ctrl.
func New(api API, ctrl *reorder.Controller) *ManagerScreen {
	return &ManagerScreen{api: api, ctrl: ctrl}
}

func (s *ManagerScreen) Init() tea.Cmd {
	return s.refresh()
}

// Resume reloads after the editor closes.
func (s *ManagerScreen) Resume() tea.Cmd {
	return s.refresh()
}

func (s *ManagerScreen) Title() string {
	return "Manage Problems"
}

// CapturesEsc keeps Esc for closing the dialog or releasing a grab.
func (s *ManagerScreen) CapturesEsc() bool {
	return s.confirm != nil || s.grabbed != ""
}

func (s *ManagerScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.confirm != nil:
		return []layout.KeyHint{
			{Key: "←→", Description: "Choose"},
			{Key: "Enter", Description: "Confirm"},
			{Key: "Esc", Description: "Cancel"},
		}
	case s.grabbed != "":
		return []layout.KeyHint{
			{Key: "↑↓", Description: "Target"},
			{Key: "Enter", Description: "Drop"},
			{Key: "Esc", Description: "Release"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Grab"},
		{Key: "A", Description: "Add"},
		{Key: "E", Description: "Edit"},
		{Key: "D", Description: "Delete"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *ManagerScreen) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: s.ctrl.Refresh(context.Background())}
	}
}

func (s *ManagerScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshedMsg:
		s.loaded = true
		if msg.err != nil {
			s.errMsg = msg.err.Error()
		} else {
			s.errMsg = ""
		}
		s.clampSelection()
		return s, nil

	case movedMsg:
		s.moving = false
		if msg.err != nil {
			s.errMsg = msg.err.Error()
		}
		s.selectID(msg.id)
		return s, nil

	case deletedMsg:
		if msg.err != nil {
			s.errMsg = msg.err.Error()
			return s, nil
		}
		return s, s.refresh()

	case tea.KeyPressMsg:
		if s.confirm != nil {
			return s, s.updateConfirm(msg)
		}
		return s, s.updateList(msg)
	}
	return s, nil
}

func (s *ManagerScreen) updateConfirm(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "left", "right", "tab", "h", "l":
		s.confirm.Toggle()
	case "y":
		s.confirm.Yes = true
		return s.confirmDelete()
	case "n", "esc":
		s.confirm = nil
	case "enter":
		return s.confirmDelete()
	}
	return nil
}

func (s *ManagerScreen) confirmDelete() tea.Cmd {
	yes := s.confirm.Yes
	id := s.deleteID
	s.confirm = nil
	s.deleteID = ""
	if !yes {
		return nil
	}
	return func() tea.Msg {
		return deletedMsg{err: s.api.DeleteProblem(context.Background(), id)}
	}
}

func (s *ManagerScreen) updateList(msg tea.KeyPressMsg) tea.Cmd {
	items := s.ctrl.Items()

	switch msg.String() {
	case "up", "k":
		if s.selected > 0 {
			s.selected--
		}
	case "down", "j":
		if s.selected < len(items)-1 {
			s.selected++
		}
	case "esc":
		s.grabbed = ""
	case "enter", "space":
		if s.moving || s.selected >= len(items) {
			return nil
		}
		if s.grabbed == "" {
			s.grabbed = items[s.selected].ID
			return nil
		}
		source, target := s.grabbed, items[s.selected].ID
		s.grabbed = ""
		if !s.ctrl.ApplyMove(source, target) {
			return nil
		}
		s.moving = true
		s.errMsg = ""
		s.selectID(source)
		return func() tea.Msg {
			return movedMsg{id: source, err: s.ctrl.Persist(context.Background())}
		}
	case "r":
		return s.refresh()
	}

	if s.grabbed != "" {
		return nil
	}

	switch msg.String() {
	case "a":
		return func() tea.Msg {
			return router.PushScreenMsg{Screen: editor.New(s.api, nil)}
		}
	case "e":
		if s.selected < len(items) {
			p := items[s.selected]
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: editor.New(s.api, &p)}
			}
		}
	case "d", "delete":
		if s.selected < len(items) {
			p := items[s.selected]
			s.deleteID = p.ID
			s.confirm = &components.Confirm{Question: fmt.Sprintf("Delete %q?", displayTitle(p))}
		}
	}
	return nil
}

func (s *ManagerScreen) selectID(id string) {
	for i, p := range s.ctrl.Items() {
		if p.ID == id {
			s.selected = i
			return
		}
	}
	s.clampSelection()
}

func (s *ManagerScreen) clampSelection() {
	n := len(s.ctrl.Items())
	if s.selected >= n {
		s.selected = max(n-1, 0)
	}
}

func (s *ManagerScreen) View(width, height int) string {
	if !s.loaded {
		return layout.Centered(width, "Loading problems...")
	}

	items := s.ctrl.Items()

	var b strings.Builder
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(layout.Centered(width, "No problems yet. Press A to add one."))
		b.WriteString("\n")
	}
	for i, p := range items {
		prefix := "  "
		style := theme.Unselected
		switch {
		case p.ID == s.grabbed:
			prefix = "≡ "
			style = theme.Grabbed
		case i == s.selected && s.grabbed != "":
			prefix = "→ "
			style = theme.Selected
		case i == s.selected:
			prefix = "▸ "
			style = theme.Selected
		}
		line := fmt.Sprintf("%s%2d. %s", prefix, i+1, displayTitle(p))
		b.WriteString("  " + style.Render(line) + "\n")
	}

	switch {
	case s.moving:
		b.WriteString("\n" + theme.Hint.Render("  Saving order..."))
	case s.errMsg != "":
		b.WriteString("\n" + theme.ErrorText.Render("  "+s.errMsg))
	}

	list := b.String()
	if s.confirm == nil {
		return list
	}
	return lipgloss.JoinVertical(lipgloss.Left, list, "", s.confirm.View(width))
}

func displayTitle(p problem.Problem) string {
	if p.Title == "" {
		return "(untitled)"
	}
	return p.Title
}
