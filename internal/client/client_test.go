package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/server"
	"github.com/abhisek/codecoach/internal/sse"
	"github.com/abhisek/codecoach/internal/store"
)

func newTestClient(t *testing.T, provider llm.Provider) *Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := server.New(server.Config{Version: "v1.4.0"}, st.ProblemRepo(), provider, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL, WithVersion("v1.0.0"))
}

func TestClient_ProblemRoundTrip(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	list, err := c.ListProblems(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	id, err := c.CreateProblem(ctx, problem.CreateInput{Title: "Sum Two Numbers", Description: "a+b", SolutionCode: "a+b"})
	require.NoError(t, err)

	p, err := c.GetProblem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sum Two Numbers", p.Title)
	assert.Equal(t, 0, p.Order)

	title := "Add Two Numbers"
	require.NoError(t, c.UpdateProblem(ctx, id, problem.Patch{Title: &title}))
	p, err = c.GetProblem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, title, p.Title)
	assert.Equal(t, "a+b", p.Description)

	require.NoError(t, c.DeleteProblem(ctx, id))
	_, err = c.GetProblem(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.DeleteProblem(ctx, id), ErrNotFound)
}

func TestClient_Reorder(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	a, err := c.CreateProblem(ctx, problem.CreateInput{Title: "a"})
	require.NoError(t, err)
	b, err := c.CreateProblem(ctx, problem.CreateInput{Title: "b"})
	require.NoError(t, err)

	require.NoError(t, c.ReorderProblems(ctx, []problem.RankUpdate{{ID: b, Order: 0}, {ID: a, Order: 1}}))
	list, err := c.ListProblems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, problem.IDs(list))

	err = c.ReorderProblems(ctx, []problem.RankUpdate{{ID: "ghost", Order: 0}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Chat(t *testing.T) {
	c := newTestClient(t, llm.NewMockProvider(llm.MockResponse{Content: "Have you tried a loop?"}))

	reply, err := c.Chat(context.Background(), "stuck")
	require.NoError(t, err)
	assert.Equal(t, "Have you tried a loop?", reply)
}

func TestClient_ChatStream(t *testing.T) {
	c := newTestClient(t, llm.NewMockProvider(llm.MockResponse{Deltas: []string{"Which ", "case ", "fails?"}}))

	body, err := c.ChatStream(context.Background(), "stuck")
	require.NoError(t, err)
	defer body.Close()

	var got strings.Builder
	require.NoError(t, sse.Fold(context.Background(), sse.NewDecoder(body), func(d string) error {
		got.WriteString(d)
		return nil
	}))
	assert.Equal(t, "Which case fails?", got.String())
}

func TestClient_NotConfigured(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.Chat(context.Background(), "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "completion API key is not configured", apiErr.Message)

	_, err = c.ChatStream(context.Background(), "hi")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "completion API key is not configured", apiErr.Message)
}

func TestClient_ChatStreamWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	_, err := New(ts.URL).ChatStream(context.Background(), "hi")
	assert.ErrorIs(t, err, sse.ErrNoStreamBody)
}

func TestClient_CheckServer(t *testing.T) {
	c := newTestClient(t, nil)

	h, err := c.CheckServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "v1.4.0", h.Version)

	c.version = "v2.0.0"
	_, err = c.CheckServer(context.Background())
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		client, server string
		want           bool
	}{
		{"v1.0.0", "v1.9.3", true},
		{"1.2.0", "v1.0.0", true},
		{"v1.0.0", "v2.0.0", false},
		{"(devel)", "v2.0.0", true},
		{"v1.0.0", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compatible(tt.client, tt.server), "%s vs %s", tt.client, tt.server)
	}
}

func TestClient_PlainTextError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	_, err := New(ts.URL).ListProblems(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.False(t, errors.Is(err, ErrNotFound))
}
