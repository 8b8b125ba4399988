// Package editor creates and edits problems.
package editor

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screen"
	"github.com/abhisek/codecoach/internal/ui/components"
	"github.com/abhisek/codecoach/internal/ui/layout"
	"github.com/abhisek/codecoach/internal/ui/theme"
)

// Store persists problems.
type Store interface {
	CreateProblem(ctx context.Context, in problem.CreateInput) (string, error)
	UpdateProblem(ctx context.Context, id string, patch problem.Patch) error
}

const (
	fieldTitle = iota
	fieldDescription
	fieldSolution
	fieldCount
)

type savedMsg struct {
	err error
}

// EditorScreen is a three-field form for one problem.
type EditorScreen struct {
	store    Store
	existing *problem.Problem

	title       components.TextInput
	description components.TextArea
	solution    components.TextArea
	focus       int
	saving      bool
	errMsg      string
}

var _ screen.Screen = (*EditorScreen)(nil)
var _ screen.KeyHintProvider = (*EditorScreen)(nil)

// New returns an editor for a new problem, or for existing when non-nil.
func New(store Store, existing *problem.Problem) *EditorScreen {
	s := &EditorScreen{
		store:       store,
		existing:    existing,
		title:       components.NewTextInput("Problem title", 200),
		description: components.NewTextArea("Describe the problem for the learner", false),
		solution:    components.NewTextArea("Reference solution (never shown to the learner)", true),
	}
	if existing != nil {
		s.title.SetValue(existing.Title)
		s.description.SetValue(existing.Description)
		s.solution.SetValue(existing.SolutionCode)
	}
	return s
}

func (s *EditorScreen) Init() tea.Cmd {
	return s.title.Init()
}

func (s *EditorScreen) Title() string {
	if s.existing != nil {
		return "Edit Problem"
	}
	return "New Problem"
}

func (s *EditorScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Ctrl+S", Description: "Save"},
		{Key: "Esc", Description: "Discard"},
	}
}

func (s *EditorScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case savedMsg:
		s.saving = false
		if msg.err != nil {
			s.errMsg = msg.err.Error()
			return s, nil
		}
		return s, func() tea.Msg { return router.PopScreenMsg{} }

	case tea.KeyPressMsg:
		switch msg.String() {
		case "tab":
			return s, s.setFocus((s.focus + 1) % fieldCount)
		case "shift+tab":
			return s, s.setFocus((s.focus + fieldCount - 1) % fieldCount)
		case "ctrl+s":
			return s, s.save()
		}
	}

	var cmd tea.Cmd
	switch s.focus {
	case fieldTitle:
		s.title, cmd = s.title.Update(msg)
	case fieldDescription:
		s.description, cmd = s.description.Update(msg)
	case fieldSolution:
		s.solution, cmd = s.solution.Update(msg)
	}
	return s, cmd
}

func (s *EditorScreen) setFocus(field int) tea.Cmd {
	s.focus = field
	s.title.Blur()
	s.description.Blur()
	s.solution.Blur()

	switch field {
	case fieldDescription:
		return s.description.Focus()
	case fieldSolution:
		return s.solution.Focus()
	default:
		return s.title.Focus()
	}
}

func (s *EditorScreen) save() tea.Cmd {
	if s.saving {
		return nil
	}
	if s.title.Blank() {
		s.errMsg = "Title is required"
		return nil
	}
	s.saving = true
	s.errMsg = ""

	title := strings.TrimSpace(s.title.Value())
	description := s.description.Value()
	solution := s.solution.Value()

	if s.existing == nil {
		return func() tea.Msg {
			_, err := s.store.CreateProblem(context.Background(), problem.CreateInput{
				Title:        title,
				Description:  description,
				SolutionCode: solution,
			})
			return savedMsg{err: err}
		}
	}

	id := s.existing.ID
	return func() tea.Msg {
		err := s.store.UpdateProblem(context.Background(), id, problem.Patch{
			Title:        &title,
			Description:  &description,
			SolutionCode: &solution,
		})
		return savedMsg{err: err}
	}
}

func (s *EditorScreen) View(width, height int) string {
	fieldWidth := min(width-4, 100)
	areaHeight := max((height-12)/2, 3)

	s.title.SetWidth(fieldWidth - 6)
	s.description.SetSize(fieldWidth-4, areaHeight)
	s.solution.SetSize(fieldWidth-4, areaHeight)

	card := func(field int, body string) string {
		style := theme.BlurredCard
		if s.focus == field {
			style = theme.FocusedCard
		}
		return style.Width(fieldWidth).Render(body)
	}

	sections := []string{
		theme.Hint.Render("Title"),
		card(fieldTitle, s.title.View()),
		theme.Hint.Render("Description"),
		card(fieldDescription, s.description.View()),
		theme.Hint.Render("Solution"),
		card(fieldSolution, s.solution.View()),
	}

	switch {
	case s.saving:
		sections = append(sections, theme.Hint.Render("Saving..."))
	case s.errMsg != "":
		sections = append(sections, theme.ErrorText.Render(s.errMsg))
	}

	form := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, form)
}
