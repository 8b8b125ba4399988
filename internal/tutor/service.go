// Package tutor runs one learner exchange end to end: it records the
// learner's message, composes the prompt, calls the completion API and
// folds the reply into the conversation history.
package tutor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/prompt"
	"github.com/abhisek/codecoach/internal/sse"
)

// ErrorReply replaces the assistant turn when the exchange fails.
const ErrorReply = "An error occurred. Please try again."

// Transport is the completion half of the API.
type Transport interface {
	Chat(ctx context.Context, message string) (string, error)
	ChatStream(ctx context.Context, message string) (io.ReadCloser, error)
}

// Request is one learner message about one problem.
type Request struct {
	Problem   problem.Problem
	Message   string
	Mode      prompt.Mode
	Streaming bool

	// OnDelta, when set, sees every piece of reply text as it is recorded.
	OnDelta func(delta string)
}

// Service sends learner messages. At most one reply per problem is in
// flight; beginning a new one cancels the previous.
type Service struct {
	transport Transport
	convs     *conversation.Manager
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*Turn
}

// New returns a service writing into convs.
func New(transport Transport, convs *conversation.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transport: transport,
		convs:     convs,
		logger:    logger,
		inflight:  map[string]*Turn{},
	}
}

// Conversations returns the manager the service writes into.
func (s *Service) Conversations() *conversation.Manager {
	return s.convs
}

// Send runs a whole exchange and returns once the reply is recorded. On a
// transport failure the assistant turn holds ErrorReply and the failure is
// returned.
func (s *Service) Send(ctx context.Context, req Request) error {
	t, err := s.Begin(ctx, req)
	if err != nil {
		return err
	}
	defer t.Cancel()

	if !req.Streaming {
		_, _, err := t.Pump()
		return err
	}
	if err := t.open(); err != nil {
		return err
	}
	return t.finish(sse.Fold(t.ctx, t.dec, t.apply))
}

// Begin records the learner's message and an empty assistant placeholder
// without touching the network. Drive the returned turn with Pump.
func (s *Service) Begin(ctx context.Context, req Request) (*Turn, error) {
	id := req.Problem.ID
	history := s.convs.Turns(id)

	var persistErr error
	if err := s.convs.AppendUserTurn(id, req.Message); err != nil {
		if !isPersist(err) {
			return nil, err
		}
		persistErr = err
	}

	content := prompt.Compose(prompt.Input{
		Mode:    req.Mode,
		Problem: req.Problem,
		History: history,
		Message: req.Message,
	})

	h, err := s.convs.BeginAssistantTurn(id)
	if err != nil {
		persistErr = err
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &Turn{
		svc:        s,
		req:        req,
		content:    content,
		handle:     h,
		ctx:        tctx,
		cancel:     cancel,
		persistErr: persistErr,
	}

	s.mu.Lock()
	if prev := s.inflight[id]; prev != nil {
		prev.cancel()
	}
	s.inflight[id] = t
	s.mu.Unlock()

	return t, nil
}

func (s *Service) release(t *Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[t.req.Problem.ID] == t {
		delete(s.inflight, t.req.Problem.ID)
	}
}

// Turn is an assistant reply being received.
type Turn struct {
	svc     *Service
	req     Request
	content string
	handle  conversation.Handle

	ctx    context.Context
	cancel context.CancelFunc

	body io.ReadCloser
	dec  *sse.Decoder

	done       bool
	err        error
	persistErr error
}

// ProblemID returns the problem the turn belongs to.
func (t *Turn) ProblemID() string {
	return t.req.Problem.ID
}

// Cancel abandons the turn. Text received so far stays in the history.
func (t *Turn) Cancel() {
	t.cancel()
}

// Pump advances the turn by one step: one decoded delta when streaming,
// the whole reply otherwise. done is true once nothing more will arrive;
// err is then the outcome of the exchange. A turn cancelled by a newer one
// ends with context.Canceled.
func (t *Turn) Pump() (delta string, done bool, err error) {
	if t.done {
		return "", true, t.err
	}
	if err := t.ctx.Err(); err != nil {
		return "", true, t.finish(err)
	}

	if !t.req.Streaming {
		reply, err := t.svc.transport.Chat(t.ctx, t.content)
		if err != nil {
			return "", true, t.finish(err)
		}
		if err := t.svc.convs.ReplaceAssistantTurn(t.ProblemID(), t.handle, reply); err != nil {
			return "", true, t.finish(err)
		}
		if t.req.OnDelta != nil {
			t.req.OnDelta(reply)
		}
		return reply, true, t.finish(nil)
	}

	if t.dec == nil {
		if err := t.open(); err != nil {
			return "", true, err
		}
	}

	delta, err = t.dec.Next()
	if errors.Is(err, io.EOF) {
		return "", true, t.finish(nil)
	}
	if err != nil {
		return "", true, t.finish(err)
	}
	if err := t.apply(delta); err != nil {
		return "", true, t.finish(err)
	}
	return delta, false, nil
}

// open starts the stream. A failure is recorded and ends the turn.
func (t *Turn) open() error {
	body, err := t.svc.transport.ChatStream(t.ctx, t.content)
	if err != nil {
		return t.finish(err)
	}
	if body == nil {
		return t.finish(sse.ErrNoStreamBody)
	}
	t.body = body
	t.dec = sse.NewDecoder(body, sse.WithLogger(t.svc.logger))
	return nil
}

func (t *Turn) apply(delta string) error {
	err := t.svc.convs.AppendAssistantDelta(t.ProblemID(), t.handle, delta)
	if isPersist(err) {
		t.persistErr = err
		err = nil
	}
	if err != nil {
		return err
	}
	if t.req.OnDelta != nil {
		t.req.OnDelta(delta)
	}
	return nil
}

// finish ends the turn exactly once. A superseded or cancelled turn keeps
// its partial text; any other failure becomes ErrorReply.
func (t *Turn) finish(err error) error {
	if t.done {
		return t.err
	}
	t.done = true
	if t.body != nil {
		_ = t.body.Close()
	}
	defer t.svc.release(t)
	defer t.cancel()

	switch {
	case err == nil:
		t.svc.convs.Complete(t.ProblemID(), t.handle)
		err = t.persistErr
	case errors.Is(err, conversation.ErrInvalidState), t.ctx.Err() != nil:
		t.svc.logger.Debug("reply abandoned", "problem", t.ProblemID(), "error", err)
		t.svc.convs.Complete(t.ProblemID(), t.handle)
		if ctxErr := t.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	default:
		t.svc.logger.Warn("reply failed", "problem", t.ProblemID(), "error", err)
		if rerr := t.svc.convs.ReplaceAssistantTurn(t.ProblemID(), t.handle, ErrorReply); rerr != nil && !isPersist(rerr) {
			t.svc.logger.Debug("error reply not recorded", "problem", t.ProblemID(), "error", rerr)
		}
	}

	t.err = err
	return err
}

func isPersist(err error) bool {
	var pe *conversation.PersistError
	return errors.As(err, &pe)
}
