package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  embedding_model: "nomic-embed-text"
  max_tokens: 1000
  temperature: 0.5
  timeout: 30s
  concurrency: 8

index:
  path: "data/index.bin"
  metadata_path: "data/metadata.json"
  dimension: 768

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_kb"

processor:
  chunk_size: 500

query:
  top_k: 10
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 30*time.Second, config.LLM.Timeout)
	assert.Equal(t, 8, config.LLM.Concurrency)
	assert.Equal(t, "data/index.bin", config.Index.Path)
	assert.Equal(t, 768, config.Index.Dimension)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 10, config.Query.TopK)

	// Unset values fall back to defaults
	assert.Equal(t, 12.0, config.Processor.HeaderFontSize)
	assert.Equal(t, "You are a helpful real estate assistant.", config.Query.SystemRole)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Empty(t, config.Validate())
}

func TestDefaultConfig(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, 768, config.Index.Dimension)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 20, config.Query.TopK)
	assert.Equal(t, "knowledge_base", config.Database.TableName)
}

func TestDefaultDimensionFollowsProvider(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     int
	}{
		{"ollama", "", 768},
		{"openai", "", 1536},
		{"ollama", "mxbai-embed-large", 1024},
		{"openai", "text-embedding-3-large", 3072},
		{"ollama", "some-custom-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			config := &Config{}
			config.LLM.Provider = tt.provider
			config.LLM.EmbeddingModel = tt.model
			config.LLM.APIKey = "sk-test"
			applyDefaults(config)

			assert.Equal(t, tt.want, config.Index.Dimension)
			assert.Empty(t, config.Validate())
		})
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid llm settings",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
			},
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"llm.max_tokens: max_tokens must be between 1 and 4096",
				"llm.temperature: temperature must be between 0 and 2",
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
			},
			errorMessages: []string{"llm.api_key: api_key is required"},
		},
		{
			name: "dimension does not match embedding model",
			mutate: func(c *Config) {
				c.Index.Dimension = 1536
			},
			errorMessages: []string{"index.dimension: embedding model nomic-embed-text:latest produces 768-dimensional vectors"},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.LLM.Provider = "mystery"
			},
			errorMessages: []string{"llm.provider: unknown provider: mystery"},
		},
		{
			name: "invalid index and database",
			mutate: func(c *Config) {
				c.Index.Dimension = -1
				c.Database.URL = "invalid-url"
				c.Query.TopK = 0
			},
			errorMessages: []string{
				"index.dimension: dimension must be positive",
				"database.url: invalid database URL",
				"query.top_k: top_k must be positive",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("HYBRIDRAG_INDEX_PATH", "/var/lib/hybridrag/index.bin")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "sk-env", config.LLM.APIKey)
	assert.Equal(t, "/var/lib/hybridrag/index.bin", config.Index.Path)
}
