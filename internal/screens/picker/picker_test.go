package picker

import (
	"context"
	"errors"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/screens/chat"
	"github.com/abhisek/codecoach/internal/tutor"
)

type fakeLister struct {
	problems []problem.Problem
	err      error
}

func (f *fakeLister) ListProblems(context.Context) ([]problem.Problem, error) {
	return f.problems, f.err
}

type memStorage map[string][]byte

func (m memStorage) Load(key string) ([]byte, error) { return m[key], nil }

func (m memStorage) Save(key string, data []byte) error {
	m[key] = data
	return nil
}

func newPicker(t *testing.T, lister *fakeLister) (*PickerScreen, *tutor.Service) {
	t.Helper()
	svc := tutor.New(nil, conversation.Open(memStorage{}, nil), nil)
	s := New(lister, svc)
	next, _ := s.Update(s.Init()())
	return next.(*PickerScreen), svc
}

func press(s *PickerScreen, msg tea.KeyPressMsg) (*PickerScreen, tea.Cmd) {
	next, cmd := s.Update(msg)
	return next.(*PickerScreen), cmd
}

func TestListsInOrderAndOpensChat(t *testing.T) {
	lister := &fakeLister{problems: []problem.Problem{
		{ID: "b", Title: "Reverse a String", Order: 1},
		{ID: "a", Title: "Sum Two Numbers", Order: 0},
	}}
	s, svc := newPicker(t, lister)

	require.NoError(t, svc.Conversations().AppendUserTurn("b", "hint?"))
	view := s.View(80, 20)
	assert.Contains(t, view, "1. Sum Two Numbers")
	assert.Contains(t, view, "2. Reverse a String")
	assert.Contains(t, view, "1 messages")

	s, _ = press(s, tea.KeyPressMsg{Code: tea.KeyDown})
	_, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)
	push, ok := cmd().(router.PushScreenMsg)
	require.True(t, ok)
	require.IsType(t, &chat.ChatScreen{}, push.Screen)
	assert.Equal(t, "Reverse a String", push.Screen.Title())
}

func TestEmptyList(t *testing.T) {
	s, _ := newPicker(t, &fakeLister{})
	assert.Contains(t, s.View(80, 20), "No problems yet")

	_, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestLoadError(t *testing.T) {
	s, _ := newPicker(t, &fakeLister{err: errors.New("connection refused")})
	assert.Contains(t, s.View(80, 20), "connection refused")
}

func TestResumeReloads(t *testing.T) {
	lister := &fakeLister{}
	s, _ := newPicker(t, lister)

	lister.problems = []problem.Problem{{ID: "a", Title: "New"}}
	next, _ := s.Update(s.Resume()())
	assert.Contains(t, next.View(80, 20), "New")
}
