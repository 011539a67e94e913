package llm

import (
	"context"

	"github.com/ndomino/triggerforge/internal/model"
)

// Provider defines the interface for LLM text-completion collaborators.
// Responses are untrusted text: the synthesizer validates structure after
// every call; no assumption is made about the provider's determinism.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates a text completion for the given request
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompleteRequest contains the input for one completion call.
type CompleteRequest struct {
	// System is the system instruction (optional)
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// CompleteResponse contains a provider's raw output.
type CompleteResponse struct {
	// Text is the raw completion; callers must parse and validate it
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration.
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests, seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Retries on transient failure (network error or 5xx), per call
	Retries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 400,
		Retries:   1,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.TimeoutSec,
		MaxTokens: mc.MaxTokens,
		Retries:   mc.Retries,
	}
}
