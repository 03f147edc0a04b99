package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xhad/hybridrag/internal/types"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // optional, for proxies and compatible servers
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64
}

func newOpenAIClient(config OpenAIConfig) (*openai.Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return openai.NewClientWithConfig(cfg), nil
}

// OpenAIEmbedder uses the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	gate   *gate
}

var _ types.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(config OpenAIConfig) (*OpenAIEmbedder, error) {
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{
		client: client,
		model:  config.Model,
		gate:   newGate("openai embed", config.RateLimit, config.Timeout),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) == 0 {
		return nil, types.ExternalError("openai embed", errors.New("cannot embed empty text"))
	}

	var vector []float32
	err := e.gate.call(ctx, func(ctx context.Context) error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: []string{text},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("no embedding data returned from API")
		}

		raw := resp.Data[0].Embedding
		vector = make([]float32, len(raw))
		for i := range raw {
			vector[i] = float32(raw[i])
		}
		return nil
	})
	return vector, err
}

// OpenAIChat generates answers with the chat completions API.
type OpenAIChat struct {
	config OpenAIConfig
	client *openai.Client
	gate   *gate
}

var _ types.Generator = (*OpenAIChat)(nil)

func NewOpenAIChat(config OpenAIConfig) (*OpenAIChat, error) {
	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	return &OpenAIChat{
		config: config,
		client: client,
		gate:   newGate("openai chat", config.RateLimit, config.Timeout),
	}, nil
}

func (c *OpenAIChat) Generate(ctx context.Context, systemRole, prompt string) (string, error) {
	var answer string
	err := c.gate.call(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			MaxTokens:   c.config.MaxTokens,
			Temperature: float32(c.config.Temperature),
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemRole},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices returned from API")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	return answer, err
}
