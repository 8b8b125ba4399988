package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/prompt"
	"github.com/abhisek/codecoach/internal/router"
	"github.com/abhisek/codecoach/internal/tutor"
)

type memStorage map[string][]byte

func (m memStorage) Load(key string) ([]byte, error) { return m[key], nil }

func (m memStorage) Save(key string, data []byte) error {
	m[key] = data
	return nil
}

type fakeTransport struct {
	reply  string
	stream string
	err    error
	sent   []string
}

func (f *fakeTransport) Chat(_ context.Context, message string) (string, error) {
	f.sent = append(f.sent, message)
	return f.reply, f.err
}

func (f *fakeTransport) ChatStream(_ context.Context, message string) (io.ReadCloser, error) {
	f.sent = append(f.sent, message)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func newScreen(t *testing.T, tr *fakeTransport) (*ChatScreen, *tutor.Service) {
	t.Helper()
	convs := conversation.Open(memStorage{}, nil)
	svc := tutor.New(tr, convs, nil)
	return New(svc, problem.Problem{ID: "p1", Title: "Sum Two Numbers", Description: "add a and b"}), svc
}

func typeText(s *ChatScreen, text string) *ChatScreen {
	for _, r := range text {
		next, _ := s.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
		s = next.(*ChatScreen)
	}
	return s
}

func press(s *ChatScreen, msg tea.KeyPressMsg) (*ChatScreen, tea.Cmd) {
	next, cmd := s.Update(msg)
	return next.(*ChatScreen), cmd
}

// drain runs pump commands until the reply settles.
func drain(t *testing.T, s *ChatScreen, cmd tea.Cmd) *ChatScreen {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 100, "reply never settled")
		msg, ok := cmd().(pumpMsg)
		require.True(t, ok)
		var next any
		next, cmd = s.Update(msg)
		s = next.(*ChatScreen)
	}
	return s
}

const stream = "data: {\"choices\":[{\"delta\":{\"content\":\"What \"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"is a+b?\"}}]}\n\n" +
	"data: [DONE]\n\n"

func TestSendStreamsReply(t *testing.T) {
	tr := &fakeTransport{stream: stream}
	s, svc := newScreen(t, tr)

	s = typeText(s, "help")
	s, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, s.input.Value())

	s = drain(t, s, cmd)
	assert.Nil(t, s.turn)
	assert.Empty(t, s.errMsg)

	turns := svc.Conversations().Turns("p1")
	require.Len(t, turns, 2)
	assert.Equal(t, "help", turns[0].Content)
	assert.Equal(t, "What is a+b?", turns[1].Content)
	assert.Contains(t, s.View(80, 24), "What is a+b?")
}

func TestBlankMessageIsIgnored(t *testing.T) {
	tr := &fakeTransport{}
	s, svc := newScreen(t, tr)

	s = typeText(s, "   ")
	_, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, svc.Conversations().Turns("p1"))
	assert.Empty(t, tr.sent)
}

func TestTabSwitchesToGrading(t *testing.T) {
	tr := &fakeTransport{reply: "Completion: 80%"}
	s, svc := newScreen(t, tr)

	s, _ = press(s, tea.KeyPressMsg{Code: tea.KeyTab})
	assert.Equal(t, prompt.Grading, s.mode)
	s, _ = press(s, tea.KeyPressMsg{Code: 's', Mod: tea.ModCtrl})
	assert.False(t, s.streaming)
	assert.Equal(t, "grading · whole reply", s.Status())

	s = typeText(s, "return a+b")
	s, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	drain(t, s, cmd)

	require.Len(t, tr.sent, 1)
	assert.Contains(t, tr.sent[0], "Learner's submission")
	turns := svc.Conversations().Turns("p1")
	assert.Equal(t, "Completion: 80%", turns[len(turns)-1].Content)
}

func TestTransportFailureShowsError(t *testing.T) {
	tr := &fakeTransport{err: errors.New("boom")}
	s, svc := newScreen(t, tr)

	s = typeText(s, "hi")
	s, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	s = drain(t, s, cmd)

	assert.Contains(t, s.errMsg, "boom")
	turns := svc.Conversations().Turns("p1")
	assert.Equal(t, tutor.ErrorReply, turns[len(turns)-1].Content)
}

func TestEscCancelsAndPops(t *testing.T) {
	tr := &fakeTransport{stream: stream}
	s, svc := newScreen(t, tr)
	assert.True(t, s.CapturesEsc())

	s = typeText(s, "hi")
	s, pending := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, pending)

	s, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEscape})
	require.NotNil(t, cmd)
	assert.Equal(t, router.PopScreenMsg{}, cmd())
	assert.Nil(t, s.turn)

	// The abandoned turn ends without writing anything further.
	msg := pending().(pumpMsg)
	assert.True(t, msg.done)
	assert.ErrorIs(t, msg.err, context.Canceled)
	turns := svc.Conversations().Turns("p1")
	assert.Empty(t, turns[len(turns)-1].Content)
}

func TestClearRemovesHistory(t *testing.T) {
	tr := &fakeTransport{stream: stream}
	s, svc := newScreen(t, tr)

	s = typeText(s, "hi")
	s, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	s = drain(t, s, cmd)
	require.NotEmpty(t, svc.Conversations().Turns("p1"))

	s, _ = press(s, tea.KeyPressMsg{Code: 'l', Mod: tea.ModCtrl})
	assert.Empty(t, svc.Conversations().Turns("p1"))
	assert.Contains(t, s.View(80, 24), "add a and b")
}

func TestSupersededEmptyReplyIsNotPending(t *testing.T) {
	tr := &fakeTransport{stream: stream}
	s, svc := newScreen(t, tr)

	s = typeText(s, "first")
	s, _ = press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.Contains(t, s.View(80, 24), "…")

	s = typeText(s, "second")
	s, cmd := press(s, tea.KeyPressMsg{Code: tea.KeyEnter})
	s = drain(t, s, cmd)

	turns := svc.Conversations().Turns("p1")
	require.Len(t, turns, 4)
	assert.Empty(t, turns[1].Content)

	view := s.View(80, 24)
	assert.Contains(t, view, "(no reply)")
	assert.NotContains(t, view, "…")
	assert.Contains(t, view, "What is a+b?")
}
