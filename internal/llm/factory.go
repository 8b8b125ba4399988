package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/codecoach/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with logging middleware when eventRepo is
// non-nil; logger receives event-log failures. A selected provider without an API key yields an error wrapping
// ErrNotConfigured.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *slog.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		mock := NewMockProvider()
		mock.Default = &MockResponse{Deltas: []string{"What do you think ", "the first step is?"}}
		base = mock
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	if eventRepo == nil {
		return base, nil
	}
	return WithLogging(cfg.Provider, base, eventRepo, logger), nil
}
