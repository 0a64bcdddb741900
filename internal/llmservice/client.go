// Package llmservice builds the embedding and chat clients for the configured provider.
package llmservice

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
)

// Client pairs the embedding endpoint with the chat-completion endpoint of one provider.
type Client struct {
	Embedder embeddings.EmbedderClient
	Chat     llms.Model
}

// New returns the clients for cfg.LLM.Provider. apiKey is ignored by ollama.
func New(cfg *config.Config, apiKey string) (*Client, error) {
	log.Debug().
		Str("provider", cfg.LLM.Provider).
		Str("base_url", cfg.LLM.BaseURL).
		Str("embedding_model", cfg.Embedding.Model).
		Str("chat_model", cfg.Chat.Model).
		Msg("Creating llm client")

	switch cfg.LLM.Provider {
	case config.ProviderLangChain:
		return newLangChain(cfg, apiKey)
	case config.ProviderGoOpenAI:
		c := NewGoOpenAI(cfg.LLM.BaseURL, apiKey, cfg.Chat.Model, cfg.Embedding.Model)
		return &Client{Embedder: c, Chat: c}, nil
	case config.ProviderOllama:
		return newOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func newLangChain(cfg *config.Config, apiKey string) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithModel(cfg.Chat.Model),
		openai.WithEmbeddingModel(cfg.Embedding.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return &Client{Embedder: llm, Chat: llm}, nil
}

// ollama binds one model per client, so chat and embeddings get separate instances.
func newOllama(cfg *config.Config) (*Client, error) {
	chat, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.BaseURL),
		ollama.WithModel(cfg.Chat.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama chat model: %w", err)
	}
	embedder, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.BaseURL),
		ollama.WithModel(cfg.Embedding.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama embedding model: %w", err)
	}
	return &Client{Embedder: embedder, Chat: chat}, nil
}
