// Package client talks to the codecoach HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"

	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/sse"
)

const defaultTimeout = 30 * time.Second

// ErrNotFound is returned when the server answers 404. It matches
// problem.ErrNotFound with errors.Is.
var ErrNotFound = problem.ErrNotFound

// ErrIncompatible is returned by CheckServer when the server's major
// version differs from the client's.
var ErrIncompatible = errors.New("server version is incompatible")

// APIError is any non-2xx answer other than 404.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Health is the server's health report.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Client is a typed client for every API route.
type Client struct {
	baseURL string
	version string
	client  *http.Client
	stream  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for non-streaming calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout bounds non-streaming calls. Streams are bounded only by their
// context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client = &http.Client{Timeout: d} }
}

// WithVersion sets the client version CheckServer compares against.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		stream:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProblems returns every problem in server order.
func (c *Client) ListProblems(ctx context.Context) ([]problem.Problem, error) {
	var list []problem.Problem
	if err := c.do(ctx, http.MethodGet, "/api/problem", nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []problem.Problem{}
	}
	return list, nil
}

// GetProblem fetches one problem.
func (c *Client) GetProblem(ctx context.Context, id string) (*problem.Problem, error) {
	var p problem.Problem
	if err := c.do(ctx, http.MethodGet, problemPath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProblem creates a problem and returns its identifier.
func (c *Client) CreateProblem(ctx context.Context, in problem.CreateInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/problem", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpdateProblem applies a partial update.
func (c *Client) UpdateProblem(ctx context.Context, id string, patch problem.Patch) error {
	return c.do(ctx, http.MethodPut, problemPath(id), patch, nil)
}

// DeleteProblem removes a problem.
func (c *Client) DeleteProblem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, problemPath(id), nil, nil)
}

// ReorderProblems submits one atomic reorder batch.
func (c *Client) ReorderProblems(ctx context.Context, batch []problem.RankUpdate) error {
	body := struct {
		Problems []problem.RankUpdate `json:"problems"`
	}{Problems: batch}
	if body.Problems == nil {
		body.Problems = []problem.RankUpdate{}
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/problem/reorder", body, &out); err != nil {
		return err
	}
	if !out.Success {
		return &APIError{StatusCode: http.StatusOK, Message: out.Message}
	}
	return nil
}

// Chat sends one message and returns the complete reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat", chatBody(message), &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// ChatStream sends one message and returns the raw event-stream body for
// an sse.Decoder. The caller closes it. A response without a body yields
// sse.ErrNoStreamBody.
func (c *Client) ChatStream(ctx context.Context, message string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/stream", chatBody(message))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, errorFrom(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, sse.ErrNoStreamBody
	}
	return resp.Body, nil
}

// Health fetches the server's health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// CheckServer verifies the server is up and that its major version matches
// the client's. Development builds on either side skip the comparison.
func (c *Client) CheckServer(ctx context.Context) (*Health, error) {
	h, err := c.Health(ctx)
	if err != nil {
		return nil, err
	}
	if !Compatible(c.version, h.Version) {
		return h, fmt.Errorf("%w: client %s, server %s", ErrIncompatible, c.version, h.Version)
	}
	return h, nil
}

// Compatible reports whether two versions share a major version. Anything
// that is not a semantic version is treated as compatible.
func Compatible(clientVersion, serverVersion string) bool {
	cv, sv := canonical(clientVersion), canonical(serverVersion)
	if !semver.IsValid(cv) || !semver.IsValid(sv) {
		return true
	}
	return semver.Major(cv) == semver.Major(sv)
}

func canonical(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func chatBody(message string) any {
	return struct {
		Message string `json:"message"`
	}{Message: message}
}

func problemPath(id string) string {
	return "/api/problem/" + url.PathEscape(id)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorFrom turns a failed response into ErrNotFound or *APIError. The
// message comes from an {error} or {message} JSON body, else the raw text.
func errorFrom(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(data))
	if gjson.ValidBytes(data) {
		switch {
		case gjson.GetBytes(data, "error").Type == gjson.String:
			msg = gjson.GetBytes(data, "error").String()
		case gjson.GetBytes(data, "message").Type == gjson.String:
			msg = gjson.GetBytes(data, "message").String()
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		if msg == "" {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
