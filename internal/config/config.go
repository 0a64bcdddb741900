package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderLangChain = "langchaingo"
	ProviderGoOpenAI  = "go-openai"
	ProviderOllama    = "ollama"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig selects the API provider used for embeddings and chat completions.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ChunkingConfig bounds the size of a chunk in tokens.
type ChunkingConfig struct {
	TokenBudget int    `yaml:"token_budget"`
	Encoding    string `yaml:"encoding"`
}

// EmbeddingConfig names the embedding model and its context window in tokens.
type EmbeddingConfig struct {
	Model         string `yaml:"model"`
	ContextWindow int    `yaml:"context_window"`
}

type ChatConfig struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

type FetchConfig struct {
	DownloadDir   string `yaml:"download_dir"`
	ReadChunkSize int    `yaml:"read_chunk_size"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// RetrievalConfig enables similarity search over ingested chunks when TopK > 0.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultProvider      = ProviderLangChain
	defaultBaseURL       = "https://api.openai.com/v1"
	defaultOllamaURL     = "http://localhost:11434"
	defaultAPIKeyEnv     = "OPENAI_API_KEY"
	defaultTokenBudget   = 300
	defaultEncoding      = "cl100k_base"
	defaultEmbedModel    = "text-embedding-ada-002"
	defaultContextWindow = 8191
	defaultChatModel     = "gpt-3.5-turbo"
	defaultDownloadDir   = "./downloads"
	defaultReadChunkSize = 128
	defaultLogLevel      = "info"
)

// LoadConfig reads a YAML config from path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaultProvider
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultBaseURL
		if cfg.LLM.Provider == ProviderOllama {
			cfg.LLM.BaseURL = defaultOllamaURL
		}
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaultAPIKeyEnv
	}
	if cfg.Chunking.TokenBudget == 0 {
		cfg.Chunking.TokenBudget = defaultTokenBudget
	}
	if cfg.Chunking.Encoding == "" {
		cfg.Chunking.Encoding = defaultEncoding
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultEmbedModel
	}
	if cfg.Embedding.ContextWindow == 0 {
		cfg.Embedding.ContextWindow = defaultContextWindow
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = defaultChatModel
	}
	if cfg.Fetch.DownloadDir == "" {
		cfg.Fetch.DownloadDir = defaultDownloadDir
	}
	if cfg.Fetch.ReadChunkSize == 0 {
		cfg.Fetch.ReadChunkSize = defaultReadChunkSize
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
}

// Validate checks the values that the chunker and embedding batcher depend on.
func (c *Config) Validate() error {
	if c.Chunking.TokenBudget <= 0 {
		return fmt.Errorf("chunking.token_budget must be positive, got %d", c.Chunking.TokenBudget)
	}
	if c.Embedding.ContextWindow <= 0 {
		return fmt.Errorf("embedding.context_window must be positive, got %d", c.Embedding.ContextWindow)
	}
	if c.Embedding.ContextWindow < c.Chunking.TokenBudget {
		return fmt.Errorf("embedding.context_window (%d) is smaller than chunking.token_budget (%d)",
			c.Embedding.ContextWindow, c.Chunking.TokenBudget)
	}
	switch c.LLM.Provider {
	case ProviderLangChain, ProviderGoOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.Fetch.ReadChunkSize < 0 || c.Fetch.TimeoutSecs < 0 {
		return errors.New("fetch.read_chunk_size and fetch.timeout_secs must not be negative")
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must not be negative, got %d", c.Retrieval.TopK)
	}
	return nil
}

// APIKey returns the key from the environment variable named by llm.api_key_env.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// FetchTimeout is zero when no timeout is configured.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSecs) * time.Second
}
