// Package llm wraps the OpenAI-compatible chat completion API used for
// summarization. Ollama and GitHub Copilot are reached through the same
// protocol with a different base URL and extra headers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Provider endpoint defaults. Anything else needs an explicit base URL.
var providerBaseURLs = map[string]string{
	"openai":         "", // library default
	"ollama":         "http://localhost:11434/v1",
	"github_copilot": "https://api.githubcopilot.com",
}

// copilotHeaders identify the request as coming from an editor integration,
// which the Copilot endpoint requires.
var copilotHeaders = map[string]string{
	"editor-version":         "vscode/1.85.1",
	"Copilot-Integration-Id": "vscode-chat",
}

// Client produces chat completions against one configured model.
type Client struct {
	api   *openai.Client
	model string
}

// headerTransport injects static headers into every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// New builds a client for the given provider and model. baseURL, when
// non-empty, overrides the provider's default endpoint.
func New(provider, model, apiKey, baseURL string) (*Client, error) {
	if model == "" {
		return nil, errors.New("llm: model is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = providerBaseURLs[provider]
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if provider == "github_copilot" {
		cfg.HTTPClient = &http.Client{
			Transport: &headerTransport{headers: copilotHeaders},
		}
	}

	return &Client{api: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Complete sends one system+user exchange and returns the model's reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }
