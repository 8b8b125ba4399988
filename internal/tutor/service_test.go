package tutor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/prompt"
	"github.com/abhisek/codecoach/internal/sse"
)

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStorage) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memStorage) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

type fakeTransport struct {
	reply     string
	chatErr   error
	stream    string
	streamErr error
	nilBody   bool
	prompts   []string
}

func (f *fakeTransport) Chat(_ context.Context, message string) (string, error) {
	f.prompts = append(f.prompts, message)
	return f.reply, f.chatErr
}

func (f *fakeTransport) ChatStream(_ context.Context, message string) (io.ReadCloser, error) {
	f.prompts = append(f.prompts, message)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.nilBody {
		return nil, nil
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func record(text string) string {
	return `data: {"choices":[{"delta":{"content":"` + text + `"}}]}` + "\n\n"
}

var sumTwo = problem.Problem{ID: "p1", Title: "Sum Two Numbers", Description: "Add a and b.", SolutionCode: "return a + b"}

func newService(tr Transport) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	convs := conversation.Open(&memStorage{data: map[string][]byte{}}, logger)
	return New(tr, convs, logger)
}

func TestSend_Streaming(t *testing.T) {
	tr := &fakeTransport{stream: record("What ") + record("is a?") + "data: [DONE]\n\n" + record("ignored")}
	svc := newService(tr)

	var seen []string
	err := svc.Send(context.Background(), Request{
		Problem:   sumTwo,
		Message:   "how do I start?",
		Streaming: true,
		OnDelta:   func(d string) { seen = append(seen, d) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"What ", "is a?"}, seen)
	assert.Equal(t, []conversation.Turn{
		{Role: conversation.RoleUser, Content: "how do I start?"},
		{Role: conversation.RoleAssistant, Content: "What is a?"},
	}, svc.Conversations().Turns("p1"))
}

func TestSend_NonStreaming(t *testing.T) {
	tr := &fakeTransport{reply: "Completion: 80%"}
	svc := newService(tr)

	require.NoError(t, svc.Send(context.Background(), Request{Problem: sumTwo, Message: "return a+b", Mode: prompt.Grading}))

	turns := svc.Conversations().Turns("p1")
	require.Len(t, turns, 2)
	assert.Equal(t, "Completion: 80%", turns[1].Content)
	require.Len(t, tr.prompts, 1)
	assert.Contains(t, tr.prompts[0], "## Learner's submission")
}

func TestSend_ComposesFromPriorHistory(t *testing.T) {
	tr := &fakeTransport{reply: "ok"}
	svc := newService(tr)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, Request{Problem: sumTwo, Message: "first question"}))
	require.NoError(t, svc.Send(ctx, Request{Problem: sumTwo, Message: "second question"}))

	require.Len(t, tr.prompts, 2)
	assert.Equal(t, prompt.Compose(prompt.Input{Problem: sumTwo, Message: "first question"}), tr.prompts[0])
	assert.Contains(t, tr.prompts[1], "first question")
	assert.Equal(t, 1, strings.Count(tr.prompts[1], "second question"))
}

func TestSend_EmptyMessageRejected(t *testing.T) {
	tr := &fakeTransport{reply: "x"}
	svc := newService(tr)

	err := svc.Send(context.Background(), Request{Problem: sumTwo, Message: "   "})
	assert.ErrorIs(t, err, conversation.ErrEmptyInput)
	assert.Empty(t, svc.Conversations().Turns("p1"))
	assert.Empty(t, tr.prompts)
}

func TestSend_TransportFailureBecomesErrorTurn(t *testing.T) {
	for name, tr := range map[string]*fakeTransport{
		"chat":    {chatErr: errors.New("connection refused")},
		"stream":  {streamErr: errors.New("connection refused")},
		"no body": {nilBody: true},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newService(tr)
			err := svc.Send(context.Background(), Request{Problem: sumTwo, Message: "help", Streaming: name != "chat"})
			require.Error(t, err)
			if name == "no body" {
				assert.ErrorIs(t, err, sse.ErrNoStreamBody)
			}

			turns := svc.Conversations().Turns("p1")
			require.Len(t, turns, 2)
			assert.Equal(t, conversation.Turn{Role: conversation.RoleAssistant, Content: ErrorReply}, turns[1])
		})
	}
}

func TestPump_OneDeltaPerCall(t *testing.T) {
	tr := &fakeTransport{stream: record("a") + ": comment\n" + record("b") + "data: [DONE]\n\n"}
	svc := newService(tr)

	turn, err := svc.Begin(context.Background(), Request{Problem: sumTwo, Message: "hi", Streaming: true})
	require.NoError(t, err)
	assert.Equal(t, "", svc.Conversations().Turns("p1")[1].Content, "placeholder exists before any network call")
	assert.Empty(t, tr.prompts)

	d, done, err := turn.Pump()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "a", d)

	d, done, err = turn.Pump()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "b", d)

	_, done, err = turn.Pump()
	require.NoError(t, err)
	assert.True(t, done)

	_, done, err = turn.Pump()
	assert.True(t, done)
	assert.NoError(t, err)
	assert.Equal(t, "ab", svc.Conversations().Turns("p1")[1].Content)
}

func TestBegin_CancelsPreviousTurnForSameProblem(t *testing.T) {
	tr := &fakeTransport{stream: record("one") + record("two") + "data: [DONE]\n\n"}
	svc := newService(tr)
	ctx := context.Background()

	first, err := svc.Begin(ctx, Request{Problem: sumTwo, Message: "q1", Streaming: true})
	require.NoError(t, err)
	_, _, err = first.Pump()
	require.NoError(t, err)

	other, err := svc.Begin(ctx, Request{Problem: problem.Problem{ID: "p2"}, Message: "elsewhere", Streaming: true})
	require.NoError(t, err)

	second, err := svc.Begin(ctx, Request{Problem: sumTwo, Message: "q2", Streaming: true})
	require.NoError(t, err)

	_, done, err := first.Pump()
	assert.True(t, done)
	assert.ErrorIs(t, err, context.Canceled)

	for {
		_, done, err := second.Pump()
		require.NoError(t, err)
		if done {
			break
		}
	}

	turns := svc.Conversations().Turns("p1")
	require.Len(t, turns, 4)
	assert.Equal(t, "one", turns[1].Content, "superseded reply keeps its partial text")
	assert.Equal(t, "onetwo", turns[3].Content)

	_, done, err = other.Pump()
	require.NoError(t, err)
	assert.False(t, done, "other problems are unaffected")
}
