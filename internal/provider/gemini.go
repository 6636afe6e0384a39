package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGeminiTimeout = 30 * time.Second
	geminiRateLimit      = 1 // requests per second
	geminiBurst          = 2
	geminiMaxRetries     = 2
	geminiBaseBackoff    = 500 * time.Millisecond
)

// GeminiAdapter generates completions against the Gemini REST API. Gemini is
// not OpenAI-compatible, so the client is hand-rolled.
type GeminiAdapter struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	name       string
}

// NewGeminiAdapter creates an adapter for the Gemini generateContent API.
func NewGeminiAdapter(baseURL, apiKey, model string, timeout time.Duration) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if timeout <= 0 {
		timeout = defaultGeminiTimeout
	}
	return &GeminiAdapter{
		model:      model,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(geminiRateLimit), geminiBurst),
		maxRetries: geminiMaxRetries,
		name:       "gemini/" + model,
	}, nil
}

// Name returns the adapter identifier.
func (a *GeminiAdapter) Name() string { return a.name }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one completion with rate limiting and retry on transient
// failures.
func (a *GeminiAdapter) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", NewError(a.name, classifyTransport(ctx, err), err)
	}

	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt.User}}},
		},
	}
	if prompt.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: prompt.System}}}
	}
	req.GenerationConfig.Temperature = 0.2
	req.GenerationConfig.MaxOutputTokens = 2048

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := geminiBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", NewError(a.name, classifyTransport(ctx, ctx.Err()), ctx.Err())
			}
		}

		completion, err := a.doRequest(ctx, req)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return "", NewError(a.name, classifyTransport(ctx, lastErr), lastErr)
}

func (a *GeminiAdapter) doRequest(ctx context.Context, req geminiRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL, a.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &transientError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &transientError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &transientError{err: fmt.Errorf("server error (%d)", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		var apiResp geminiResponse
		if jsonErr := json.Unmarshal(body, &apiResp); jsonErr == nil && apiResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d)", resp.StatusCode)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

var _ Adapter = (*GeminiAdapter)(nil)
