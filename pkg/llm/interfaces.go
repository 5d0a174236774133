// Package llm provides clients for the generative model endpoints used by the
// scoring oracle. Two providers are supported: OpenAI-compatible endpoints and
// Anthropic.
package llm

import "context"

// Client defines the interface for generative model calls.
// Use this interface for dependency injection to enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion for the given prompt.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Config holds configuration for creating a client.
type Config struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1" (OpenAI provider only)
	Model    string // Model name
	APIKey   string // Optional for local OpenAI-compatible endpoints
}

// Compile-time interface checks.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
