// Package llm adapts completion providers to a single prompt-in, text-out
// interface used by the analysis builder.
package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-battle/internal/config"
	"github.com/sells-group/product-battle/pkg/anthropic"
)

// Request is one completion call.
type Request struct {
	System string
	Prompt string
	// Key is the product key the call is made for; used for logging only.
	Key string
}

// Completer returns the raw model text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model identifies the provider and model, e.g. "openai:gpt-4o-mini".
	Model() string
}

// New builds the Completer selected by cfg.LLM.Provider.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("llm: anthropic key is required")
		}
		return NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.LLM.MaxTokens), nil
	case "gemini":
		return NewGemini(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
	case "openai":
		return NewOpenAI(cfg.OpenAI.Key, cfg.OpenAI.Model, cfg.LLM.MaxTokens)
	}
	return nil, eris.Errorf("llm: unsupported provider %q", cfg.LLM.Provider)
}
