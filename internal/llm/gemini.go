package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Gemini completes prompts with the Gemini generateContent API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini completer.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, eris.New("llm: gemini key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, eris.Wrap(err, "llm: create genai client")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Model() string { return "gemini:" + g.model }

// Complete sends the system text ahead of the prompt in a single user turn.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: gemini complete")
	}
	return resp.Text(), nil
}
