package ai

import "context"

// Runtime is a minimal interface implemented by AI backends/runtimes
// such as OpenRouter and local runtimes (e.g., Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local" // alias of ollama
)

// StreamRuntime is an optional extension that supports streaming output.
// Implementors should invoke onDelta with each partial content chunk.
type StreamRuntime interface {
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// NeedsAPIKey reports whether the provider authenticates with an API key.
func NeedsAPIKey(provider string) bool {
	switch provider {
	case ProviderOllama, ProviderLocal:
		return false
	}
	return true
}
