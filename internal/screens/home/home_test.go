package home

import (
	"context"
	"errors"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codecoach/internal/client"
	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/reorder"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screens/manager"
	"github.com/abhisek/codecoach/internal/screens/picker"
	"github.com/abhisek/codecoach/internal/screens/placeholder"
	"github.com/abhisek/codecoach/internal/tutor"
)

type fakeBackend struct {
	healthErr error
	problems  []problem.Problem
}

func (f *fakeBackend) CheckServer(context.Context) (*client.Health, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &client.Health{Status: "ok", Version: "v1.0.0"}, nil
}

func (f *fakeBackend) ListProblems(context.Context) ([]problem.Problem, error) {
	return f.problems, nil
}

func (f *fakeBackend) ReorderProblems(context.Context, []problem.RankUpdate) error { return nil }

func (f *fakeBackend) CreateProblem(context.Context, problem.CreateInput) (string, error) {
	return "id", nil
}

func (f *fakeBackend) UpdateProblem(context.Context, string, problem.Patch) error { return nil }

func (f *fakeBackend) DeleteProblem(context.Context, string) error { return nil }

type nopStorage struct{}

func (nopStorage) Load(string) ([]byte, error) { return nil, nil }
func (nopStorage) Save(string, []byte) error   { return nil }

func newHome(t *testing.T, backend *fakeBackend) *HomeScreen {
	t.Helper()
	svc := tutor.New(nil, conversation.Open(nopStorage{}, nil), nil)
	h := New(backend, svc, reorder.New(backend))
	next, _ := h.Update(h.Init()())
	return next.(*HomeScreen)
}

func selectItem(t *testing.T, h *HomeScreen, downs int) tea.Msg {
	t.Helper()
	for range downs {
		h.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	}
	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)
	return cmd()
}

func TestOnlineOpensScreens(t *testing.T) {
	h := newHome(t, &fakeBackend{problems: []problem.Problem{{ID: "a"}, {ID: "b"}}})
	assert.Equal(t, "● online v1.0.0", h.Status())
	assert.Equal(t, 2, h.problems)
	assert.Contains(t, h.View(120, 40), "2 PROBLEMS")

	push := selectItem(t, h, 0).(router.PushScreenMsg)
	assert.IsType(t, &picker.PickerScreen{}, push.Screen)

	push = selectItem(t, h, 1).(router.PushScreenMsg)
	assert.IsType(t, &manager.ManagerScreen{}, push.Screen)
}

func TestOfflineShowsPlaceholder(t *testing.T) {
	h := newHome(t, &fakeBackend{healthErr: errors.New("connection refused")})
	assert.Equal(t, "○ offline", h.Status())
	assert.Contains(t, h.View(120, 40), "not reachable")

	push := selectItem(t, h, 0).(router.PushScreenMsg)
	assert.IsType(t, &placeholder.PlaceholderScreen{}, push.Screen)
}

func TestIncompatibleServer(t *testing.T) {
	h := newHome(t, &fakeBackend{healthErr: client.ErrIncompatible})
	assert.Equal(t, "The server runs an incompatible version.", h.offlineReason())
}

func TestQuit(t *testing.T) {
	h := newHome(t, &fakeBackend{})
	_, ok := selectItem(t, h, 2).(tea.QuitMsg)
	assert.True(t, ok)
}

func TestReconnect(t *testing.T) {
	backend := &fakeBackend{healthErr: errors.New("down")}
	h := newHome(t, backend)
	require.False(t, h.online())

	backend.healthErr = nil
	_, cmd := h.Update(tea.KeyPressMsg{Code: 'r', Text: "r"})
	require.NotNil(t, cmd)
	h.Update(cmd())
	assert.True(t, h.online())
}
