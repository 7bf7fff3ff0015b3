package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// defaultOpenRouterBaseURL is the default OpenRouter API base URL.
const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// HTTPDoer abstracts HTTP clients used by providers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenRouterProvider implements Provider for OpenRouter and any other
// OpenAI-compatible chat completions endpoint.
type OpenRouterProvider struct {
	APIKey  string
	BaseURL string
	Client  HTTPDoer
	Model   string
}

// ProviderError reports a non-2xx response from the model endpoint.
type ProviderError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("model provider error (status %d): %s", e.StatusCode, e.Body)
}

// NewOpenRouterProvider constructs a provider with explicit settings.
func NewOpenRouterProvider(model, apiKey, baseURL string, client HTTPDoer) (*OpenRouterProvider, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenRouterProvider{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
		Model:   model,
	}, nil
}

// Stream sends a prompt and returns a stream that decodes server-sent events
// as they arrive. The caller must Close the stream.
func (p *OpenRouterProvider) Stream(ctx context.Context, prompt Prompt) (Stream, error) {
	messages, err := buildOpenRouterMessages(prompt)
	if err != nil {
		return nil, err
	}
	requestBody := openRouterRequest{
		Model:         p.Model,
		Stream:        true,
		StreamOptions: &openRouterStreamOptions{IncludeUsage: true},
		Messages:      messages,
		Temperature:   prompt.Temperature,
	}
	if prompt.MaxOutputTokens > 0 {
		requestBody.MaxTokens = prompt.MaxOutputTokens
	}
	if len(prompt.Tools) > 0 {
		requestBody.Tools = buildOpenRouterTools(prompt.Tools)
		requestBody.ToolChoice = buildToolChoice(prompt.ToolChoice)
	}
	payload, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return newSSEStream(resp.Body), nil
}
