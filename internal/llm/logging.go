package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/codecoach/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an event.
type LoggingProvider struct {
	name      string
	inner     Provider
	eventRepo store.EventRepo
	logger    *slog.Logger
}

// WithLogging wraps a Provider with event logging. name is recorded as the
// provider label. Failures to record go to logger, or slog.Default when
// logger is nil.
func WithLogging(name string, p Provider, repo store.EventRepo, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{name: name, inner: p, eventRepo: repo, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	data := l.eventData(ctx, req, start, err)
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = resp.Content
	}

	l.record(ctx, data)
	return resp, err
}

// Stream records the event once the stream is closed, carrying the full
// text that was received and the first error the stream produced.
func (l *LoggingProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	start := time.Now()

	s, err := l.inner.Stream(ctx, req)
	if err != nil {
		l.record(ctx, l.eventData(ctx, req, start, err))
		return nil, err
	}

	return &loggingStream{
		inner: s,
		finish: func(text string, usage Usage, streamErr error) {
			data := l.eventData(ctx, req, start, streamErr)
			data.InputTokens = usage.InputTokens
			data.OutputTokens = usage.OutputTokens
			data.ResponseBody = text
			// The request context may already be done; the event still matters.
			l.record(context.WithoutCancel(ctx), data)
		},
	}, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) eventData(ctx context.Context, req Request, start time.Time, err error) store.LLMRequestEventData {
	data := store.LLMRequestEventData{
		Provider:    l.name,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	return data
}

// record logs the event but doesn't fail the request if logging fails.
func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData) {
	if err := l.eventRepo.AppendLLMRequest(ctx, data); err != nil {
		l.logger.Warn("failed to log LLM request event", "purpose", data.Purpose, "error", err)
	}
}

type loggingStream struct {
	inner  Stream
	finish func(text string, usage Usage, err error)

	once sync.Once
	text strings.Builder
	err  error
}

func (s *loggingStream) Recv() (string, error) {
	delta, err := s.inner.Recv()
	if err == nil {
		s.text.WriteString(delta)
		return delta, nil
	}
	if !errors.Is(err, io.EOF) && s.err == nil {
		s.err = err
	}
	return delta, err
}

func (s *loggingStream) Usage() Usage { return s.inner.Usage() }

func (s *loggingStream) Close() error {
	err := s.inner.Close()
	s.once.Do(func() {
		s.finish(s.text.String(), s.inner.Usage(), s.err)
	})
	return err
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}
