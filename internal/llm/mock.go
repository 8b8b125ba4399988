package llm

import (
	"context"
	"io"
	"strings"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	// Content is returned by Generate. When empty, the joined Deltas are
	// used instead.
	Content string

	// Deltas are yielded one by one by Stream. When empty, Content is
	// yielded as a single delta.
	Deltas []string

	Usage Usage

	// Err fails the call itself.
	Err error

	// StreamErr is returned by Recv after all Deltas were yielded.
	StreamErr error
}

func (r MockResponse) text() string {
	if r.Content != "" {
		return r.Content
	}
	return strings.Join(r.Deltas, "")
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	// Default is served once the queue is empty. When nil, an empty queue
	// yields ErrProviderUnavailable.
	Default *MockResponse
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) next(req Request) (MockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		if m.Default != nil {
			return *m.Default, nil
		}
		return MockResponse{}, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, resp.Err
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}

	return &Response{
		Content:    resp.text(),
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// Stream returns the next canned response as a stream of its deltas.
func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}

	deltas := resp.Deltas
	if len(deltas) == 0 && resp.Content != "" {
		deltas = []string{resp.Content}
	}
	return &mockStream{ctx: ctx, deltas: deltas, usage: resp.Usage, err: resp.StreamErr}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate and Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type mockStream struct {
	ctx    context.Context
	deltas []string
	usage  Usage
	err    error
	closed bool
}

func (s *mockStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.closed {
		return "", io.EOF
	}
	if len(s.deltas) > 0 {
		d := s.deltas[0]
		s.deltas = s.deltas[1:]
		return d, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *mockStream) Usage() Usage { return s.usage }

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
