package llmclient

import (
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// New builds a Provider for the named backend ("openai" or "anthropic"),
// reading the API key from apiKeyEnv. model and embedModel may be empty to
// take each provider's default; embedModel is only meaningful for openai,
// the only backend that also implements EmbeddingProvider.
func New(providerName, model, embedModel, apiKeyEnv string, timeout time.Duration) (Provider, error) {
	apiKey := os.Getenv(apiKeyEnv)
	switch providerName {
	case "openai":
		var opts []OpenAIOption
		if model != "" {
			opts = append(opts, WithOpenAIModel(model))
		}
		if embedModel != "" {
			opts = append(opts, WithOpenAIEmbedModel(embedModel))
		}
		if apiKey != "" {
			opts = append(opts, WithOpenAIAPIKey(apiKey))
		}
		if timeout > 0 {
			opts = append(opts, WithOpenAITimeout(timeout))
		}
		return NewOpenAIProvider(opts...), nil
	case "anthropic":
		var opts []AnthropicOption
		if model != "" {
			opts = append(opts, WithAnthropicModel(anthropic.Model(model)))
		}
		if apiKey != "" {
			opts = append(opts, WithAnthropicAPIKey(apiKey))
		}
		if timeout > 0 {
			opts = append(opts, WithAnthropicTimeout(timeout))
		}
		return NewAnthropicProvider(opts...), nil
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", providerName)
	}
}

// NewEmbeddingProvider builds an EmbeddingProvider for the named backend.
// Only "openai" currently implements EmbeddingProvider.
func NewEmbeddingProvider(providerName, model, embedModel, apiKeyEnv string, timeout time.Duration) (EmbeddingProvider, error) {
	provider, err := New(providerName, model, embedModel, apiKeyEnv, timeout)
	if err != nil {
		return nil, err
	}
	embedder, ok := provider.(EmbeddingProvider)
	if !ok {
		return nil, fmt.Errorf("llmclient: provider %q does not support embeddings", providerName)
	}
	return embedder, nil
}
