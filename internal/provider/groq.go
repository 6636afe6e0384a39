package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// GroqAdapter generates completions against Groq's OpenAI-compatible API.
type GroqAdapter struct {
	model *openai.LLM
	name  string
}

// NewGroqAdapter creates an adapter for the Groq inference API.
func NewGroqAdapter(baseURL, apiKey, model string) (*GroqAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groq client: %w", err)
	}
	return &GroqAdapter{model: llm, name: "groq/" + model}, nil
}

// Name returns the adapter identifier.
func (a *GroqAdapter) Name() string { return a.name }

// Generate runs one chat completion.
func (a *GroqAdapter) Generate(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := a.model.GenerateContent(ctx, messagesFor(prompt), llms.WithTemperature(0.2))
	if err != nil {
		return "", NewError(a.name, classifyTransport(ctx, err), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", NewError(a.name, KindMalformed, fmt.Errorf("empty completion"))
	}
	return resp.Choices[0].Content, nil
}

var _ Adapter = (*GroqAdapter)(nil)
