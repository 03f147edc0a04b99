package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/hybridrag/internal/types"
)

// EmbedderConfig represents the configuration for an embedding client.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 for unlimited
}

type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedder embeds text through an Ollama server.
type OllamaEmbedder struct {
	config EmbedderConfig
	client embeddingClient
	gate   *gate
}

var _ types.Embedder = (*OllamaEmbedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &OllamaEmbedder{
		config: config,
		client: emb,
		gate:   newGate("ollama embed", config.RateLimit, config.Timeout),
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.gate.call(ctx, func(ctx context.Context) error {
		embeddings, err := e.client.CreateEmbedding(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(embeddings) == 0 || len(embeddings[0]) == 0 {
			return errors.New("no embedding returned")
		}
		vector = embeddings[0]
		return nil
	})
	return vector, err
}
