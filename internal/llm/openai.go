package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
)

// OpenAI completes prompts with the Chat Completions API in JSON mode.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI completer against the public API.
func NewOpenAI(apiKey, model string, maxTokens int64) (*OpenAI, error) {
	if apiKey == "" {
		return nil, eris.New("llm: openai key is required")
	}
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model, maxTokens), nil
}

// NewOpenAIWithConfig creates an OpenAI completer from a client config,
// e.g. one pointing BaseURL at a compatible gateway.
func NewOpenAIWithConfig(cfg openai.ClientConfig, model string, maxTokens int64) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, maxTokens: int(maxTokens)}
}

func (o *OpenAI) Model() string { return "openai:" + o.model }

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model: o.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	// Reasoning models reject max_tokens.
	if isReasoningModel(o.model) {
		chat.MaxCompletionTokens = o.maxTokens
	} else {
		chat.MaxTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", eris.Wrap(err, "llm: openai complete")
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("llm: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
