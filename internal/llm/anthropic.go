package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-battle/pkg/anthropic"
)

// Anthropic completes prompts with the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic wraps client. maxTokens <= 0 uses 2048.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

func (a *Anthropic) Model() string { return "anthropic:" + a.model }

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	temp := 0.2
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: anthropic complete")
	}
	resp.Usage.LogCost(a.model, req.Key)
	return resp.Text(), nil
}
