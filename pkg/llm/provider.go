package llm

import (
	"fmt"
	"time"

	"github.com/xhad/hybridrag/internal/types"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and configures both collaborators. Credentials
// are passed in here rather than read from the environment.
type ProviderConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
	Timeout        time.Duration
	RateLimit      float64
}

func NewEmbedder(config ProviderConfig) (types.Embedder, error) {
	switch config.Provider {
	case ProviderOllama, "":
		return NewEmbedderWithConfig(EmbedderConfig{
			Model:     config.EmbeddingModel,
			BaseURL:   config.BaseURL,
			Timeout:   config.Timeout,
			RateLimit: config.RateLimit,
		})
	case ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    config.APIKey,
			BaseURL:   config.BaseURL,
			Model:     config.EmbeddingModel,
			Timeout:   config.Timeout,
			RateLimit: config.RateLimit,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}

func NewGenerator(config ProviderConfig) (types.Generator, error) {
	switch config.Provider {
	case ProviderOllama, "":
		return NewWithConfig(ChatConfig{
			Model:       config.Model,
			Temperature: config.Temperature,
			MaxTokens:   config.MaxTokens,
			BaseURL:     config.BaseURL,
			Timeout:     config.Timeout,
			RateLimit:   config.RateLimit,
		})
	case ProviderOpenAI:
		return NewOpenAIChat(OpenAIConfig{
			APIKey:      config.APIKey,
			BaseURL:     config.BaseURL,
			Model:       config.Model,
			Temperature: config.Temperature,
			MaxTokens:   config.MaxTokens,
			Timeout:     config.Timeout,
			RateLimit:   config.RateLimit,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}
