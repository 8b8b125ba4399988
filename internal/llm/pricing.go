package llm

import (
	"regexp"
	"strings"
)

// ModelCost holds pricing in USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of one call.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// snapshotSuffix matches dated model snapshots such as -20251001 or
// -2024-08-06.
var snapshotSuffix = regexp.MustCompile(`-\d{4}-?\d{2}-?\d{2}$`)

// LookupCost returns the pricing for a model ID as recorded in the event log,
// or nil if unknown. OpenRouter IDs ("vendor/model") are priced as the
// vendor's model, and their ":free" variants cost nothing. Dated snapshots
// fall back to the undated model.
func LookupCost(modelID string) *ModelCost {
	id := modelID
	if _, rest, ok := strings.Cut(id, "/"); ok {
		id = rest
	}
	if base, ok := strings.CutSuffix(id, ":free"); ok && base != "" {
		return &ModelCost{}
	}

	for _, candidate := range []string{id, snapshotSuffix.ReplaceAllString(id, "")} {
		if c, ok := modelCosts[candidate]; ok {
			return &c
		}
	}
	return nil
}

// modelCosts covers the models the tutor's providers resolve to by default
// and the common alternatives for a short chat workload. Prices from
// models.dev, 2026-02.
var modelCosts = map[string]ModelCost{
	// Anthropic
	"claude-3-5-haiku":  {0.8, 4},
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-sonnet-4-5": {3, 15},
	"claude-opus-4-5":   {5, 25},

	// OpenAI
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},
	"o4-mini":      {1.1, 4.4},

	// Google
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.0-pro":        {1.25, 10},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}
