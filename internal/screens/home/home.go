package home

import (
	"context"
	"errors"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/codecoach/internal/client"
	"github.com/abhisek/codecoach/internal/reorder"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screen"
	"github.com/abhisek/codecoach/internal/screens/manager"
	"github.com/abhisek/codecoach/internal/screens/picker"
	"github.com/abhisek/codecoach/internal/screens/placeholder"
	"github.com/abhisek/codecoach/internal/tutor"
	"github.com/abhisek/codecoach/internal/ui/components"
	"github.com/abhisek/codecoach/internal/ui/layout"
)

// Backend is the API the home screen and the screens it opens talk to.
type Backend interface {
	manager.API
	reorder.Store
	CheckServer(ctx context.Context) (*client.Health, error)
}

type healthMsg struct {
	health   *client.Health
	problems int
	err      error
}

// HomeScreen is the main menu. It tracks whether the server is reachable.
type HomeScreen struct {
	backend Backend
	svc     *tutor.Service
	ctrl    *reorder.Controller

	menu       components.Menu
	menuLabels []string

	checked  bool
	health   *client.Health
	problems int
	err      error
}

var _ screen.Screen = (*HomeScreen)(nil)
var _ screen.KeyHintProvider = (*HomeScreen)(nil)
var _ screen.Resumer = (*HomeScreen)(nil)
var _ screen.StatusProvider = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(backend Backend, svc *tutor.Service, ctrl *reorder.Controller) *HomeScreen {
	h := &HomeScreen{backend: backend, svc: svc, ctrl: ctrl}
	h.menuLabels = []string{"SOLVE A PROBLEM", "MANAGE PROBLEMS", "QUIT"}

	items := []components.MenuItem{
		{Label: h.menuLabels[0], Action: func() tea.Cmd {
			return h.open(func() screen.Screen { return picker.New(h.backend, h.svc) })
		}},
		{Label: h.menuLabels[1], Action: func() tea.Cmd {
			return h.open(func() screen.Screen { return manager.New(h.backend, h.ctrl) })
		}},
		{Label: h.menuLabels[2], Action: func() tea.Cmd {
			return tea.Quit
		}},
	}
	h.menu = components.NewMenu(items)
	return h
}

// open pushes a server-backed screen, or a notice while the server is
// unreachable.
func (h *HomeScreen) open(build func() screen.Screen) tea.Cmd {
	var s screen.Screen
	if h.online() {
		s = build()
	} else {
		s = placeholder.New("Server offline", h.offlineReason()+"\n\nStart it with `codecoach serve`, then press R on the home screen.")
	}
	return func() tea.Msg { return router.PushScreenMsg{Screen: s} }
}

func (h *HomeScreen) Init() tea.Cmd {
	return h.check()
}

// Resume re-checks the server so counts stay current.
func (h *HomeScreen) Resume() tea.Cmd {
	return h.check()
}

func (h *HomeScreen) check() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		health, err := h.backend.CheckServer(ctx)
		if err != nil {
			return healthMsg{err: err}
		}
		list, err := h.backend.ListProblems(ctx)
		return healthMsg{health: health, problems: len(list), err: err}
	}
}

func (h *HomeScreen) online() bool {
	return h.checked && h.err == nil
}

func (h *HomeScreen) offlineReason() string {
	switch {
	case !h.checked:
		return "Still contacting the server."
	case errors.Is(h.err, client.ErrIncompatible):
		return "The server runs an incompatible version."
	case h.err != nil:
		return "The server is not reachable."
	}
	return ""
}

// Status shows the connection state in the header.
func (h *HomeScreen) Status() string {
	switch {
	case !h.checked:
		return "connecting..."
	case h.online():
		if h.health != nil && h.health.Version != "" {
			return "● online " + h.health.Version
		}
		return "● online"
	}
	return "○ offline"
}

func (h *HomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "R", Description: "Reconnect"},
	}
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case healthMsg:
		h.checked = true
		h.health = msg.health
		h.problems = msg.problems
		h.err = msg.err
		return h, nil

	case tea.KeyPressMsg:
		if msg.String() == "r" {
			return h, h.check()
		}
	}

	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	// height is the content area; add back header and footer.
	termHeight := height + 8
	compact := termHeight < 30 || width < layout.CompactWidthThreshold

	cw := contentWidth(width)

	var sections []string
	if !compact {
		variant := MascotIdle
		if !h.online() {
			variant = MascotOffline
		}
		sections = append(sections, RenderMascot(variant))
	}

	sections = append(sections, renderStatsBar(h.problems, len(h.svc.Conversations().ProblemIDs()), h.online(), cw))
	if h.checked && !h.online() {
		sections = append(sections, renderServerBanner(h.offlineReason(), cw))
	}
	sections = append(sections, renderMenu(h.menuLabels, h.menu.Selected, cw, termHeight < 24))

	return renderFrame(strings.Join(sections, "\n\n"), width, height)
}

func (h *HomeScreen) Title() string {
	return "Home"
}
