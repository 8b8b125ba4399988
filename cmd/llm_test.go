package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/store"
)

func TestPrintRouteStats(t *testing.T) {
	var out bytes.Buffer
	printRouteStats(&out, []store.LLMUsageStat{
		{Purpose: llm.PurposeChat, Model: "gpt-4o-mini", Calls: 2, InputTokens: 1_000_000, OutputTokens: 1_000_000, AvgLatencyMs: 120},
		{Purpose: llm.PurposeChatStream, Model: "mock", Calls: 1, InputTokens: 10, OutputTokens: 4},
	})

	text := out.String()
	assert.Contains(t, text, "$0.75")
	assert.Contains(t, text, "(all models)")
	assert.Contains(t, text, "TOTAL (partial)")
	assert.Contains(t, text, "Pricing unavailable for: mock")
}

func TestPrintRouteStatsEmpty(t *testing.T) {
	var out bytes.Buffer
	printRouteStats(&out, nil)
	assert.Equal(t, "No completion requests recorded.\n", out.String())
}

func TestFailedOnly(t *testing.T) {
	events := []store.LLMRequestEventRecord{
		{ID: 4, LLMRequestEventData: store.LLMRequestEventData{Success: false}},
		{ID: 3, LLMRequestEventData: store.LLMRequestEventData{Success: true}},
		{ID: 2, LLMRequestEventData: store.LLMRequestEventData{Success: false}},
		{ID: 1, LLMRequestEventData: store.LLMRequestEventData{Success: false}},
	}

	got := failedOnly(events, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].ID)
	assert.Equal(t, 2, got[1].ID)

	assert.Len(t, failedOnly(events, 0), 3)
}

func TestPrintEventMarksCutStream(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, &store.LLMRequestEventRecord{
		ID:        7,
		Timestamp: time.Now(),
		LLMRequestEventData: store.LLMRequestEventData{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			Purpose:      llm.PurposeChatStream,
			ErrorMessage: "connection reset",
			RequestBody:  "[user] help",
			ResponseBody: "What do",
		},
	})

	text := out.String()
	assert.Contains(t, text, "Route:     chat-stream")
	assert.Contains(t, text, "What do\n(stream ended early)")
	assert.Contains(t, text, "Error:     connection reset")
}
