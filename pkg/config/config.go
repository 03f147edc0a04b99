package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string        `yaml:"provider"`
		BaseURL        string        `yaml:"base_url"`
		Model          string        `yaml:"model"`
		EmbeddingModel string        `yaml:"embedding_model"`
		APIKey         string        `yaml:"api_key"`
		MaxTokens      int           `yaml:"max_tokens"`
		Temperature    float64       `yaml:"temperature"`
		Timeout        time.Duration `yaml:"timeout"`
		RateLimit      float64       `yaml:"rate_limit"`
		Concurrency    int           `yaml:"concurrency"`
	} `yaml:"llm"`

	Index struct {
		Path         string `yaml:"path"`
		MetadataPath string `yaml:"metadata_path"`
		Dimension    int    `yaml:"dimension"`
	} `yaml:"index"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Scraper struct {
		MaxDepth          int      `yaml:"max_depth"`
		RateLimit         float64  `yaml:"rate_limit"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"scraper"`

	Processor struct {
		ChunkSize      int     `yaml:"chunk_size"`
		HeaderFontSize float64 `yaml:"header_font_size"`
	} `yaml:"processor"`

	Query struct {
		TopK       int    `yaml:"top_k"`
		SystemRole string `yaml:"system_role"`
	} `yaml:"query"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/hybridrag/config.yaml"),
			"/etc/hybridrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		if config.LLM.Provider == "openai" {
			config.LLM.EmbeddingModel = "text-embedding-3-small"
		} else {
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}
	if config.LLM.Concurrency == 0 {
		config.LLM.Concurrency = 4
	}

	if config.Index.Path == "" {
		config.Index.Path = "faiss_index.bin"
	}
	if config.Index.MetadataPath == "" {
		config.Index.MetadataPath = "metadata.json"
	}
	if config.Index.Dimension == 0 {
		if dim, ok := EmbeddingDimension(config.LLM.EmbeddingModel); ok {
			config.Index.Dimension = dim
		} else {
			config.Index.Dimension = 1536
		}
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "knowledge_base"
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.HeaderFontSize == 0 {
		config.Processor.HeaderFontSize = 12
	}

	if config.Query.TopK == 0 {
		config.Query.TopK = 20
	}
	if config.Query.SystemRole == "" {
		config.Query.SystemRole = "You are a helpful real estate assistant."
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

// Output sizes of well-known embedding models.
var embeddingDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// EmbeddingDimension returns the vector size of a known embedding model.
// An Ollama tag suffix such as ":latest" is ignored.
func EmbeddingDimension(model string) (int, bool) {
	name, _, _ := strings.Cut(model, ":")
	dim, ok := embeddingDimensions[name]
	return dim, ok
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if indexPath := os.Getenv("HYBRIDRAG_INDEX_PATH"); indexPath != "" {
		config.Index.Path = indexPath
	}
}
