package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// OllamaAdapter generates completions against a local Ollama server.
type OllamaAdapter struct {
	model *ollama.LLM
	name  string
}

// NewOllamaAdapter connects to an Ollama server. Construction only validates
// options; the server is not contacted until the first Generate call.
func NewOllamaAdapter(serverURL, model string) (*OllamaAdapter, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaAdapter{model: llm, name: "ollama/" + model}, nil
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string { return a.name }

// Generate runs one chat completion.
func (a *OllamaAdapter) Generate(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := a.model.GenerateContent(ctx, messagesFor(prompt), llms.WithTemperature(0.2))
	if err != nil {
		return "", NewError(a.name, classifyTransport(ctx, err), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", NewError(a.name, KindMalformed, fmt.Errorf("empty completion"))
	}
	return resp.Choices[0].Content, nil
}

// messagesFor builds the standard two-message chat payload.
func messagesFor(prompt Prompt) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, 2)
	if prompt.System != "" {
		msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeSystem, prompt.System))
	}
	msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeHuman, prompt.User))
	return msgs
}

// classifyTransport maps a generation error to a failure kind using the
// context state, since client libraries wrap deadline errors inconsistently.
func classifyTransport(ctx context.Context, err error) ErrorKind {
	if ctx.Err() == context.DeadlineExceeded {
		return KindTimeout
	}
	return KindOf(err)
}

var _ Adapter = (*OllamaAdapter)(nil)
