package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/hybridrag/internal/types"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // Ollama server URL
	Timeout     time.Duration
	RateLimit   float64
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
	gate   *gate
}

var _ types.Generator = (*ChatEngine)(nil)

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
		gate:   newGate("ollama chat", config.RateLimit, config.Timeout),
	}, nil
}

// Generate sends the system role and prompt as a two-message conversation.
func (ce *ChatEngine) Generate(ctx context.Context, systemRole, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemRole),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	var answer string
	err := ce.gate.call(ctx, func(ctx context.Context) error {
		response, err := ce.llm.GenerateContent(ctx, content,
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithTemperature(ce.config.Temperature),
		)
		if err != nil {
			return fmt.Errorf("chat error: %w", err)
		}
		if response == nil || len(response.Choices) == 0 {
			return errors.New("no response from LLM")
		}
		answer = response.Choices[0].Content
		return nil
	})
	return answer, err
}
