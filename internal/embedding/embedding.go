package embedding

import (
	"context"
	"fmt"
	"strings"

	"lecture-rag/internal/config"
	"lecture-rag/internal/llmservice"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns text into a vector. Returned errors are classified by
// llmservice.Classify.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// New returns the Embedder for llmConfig.Provider.
func New(llmConfig config.LLMConfig) (Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	switch strings.ToLower(llmConfig.Provider) {
	case "openai":
		return NewOpenAIEmbedder(llmConfig), nil
	case "openrouter":
		return NewEmbedder(llmConfig.Key, llmConfig.BaseURL, llmConfig.Model)
	case "ollama":
		return NewOllamaEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", llmConfig.Provider)
	}
}

// NewEmbedder creates an embedder for an OpenAI compatible endpoint.
func NewEmbedder(key, baseURL, embeddingModel string) (Embedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return classified{embedder}, nil
}

// NewOllamaEmbedder creates an embedder backed by a local Ollama server.
func NewOllamaEmbedder(llmConfig config.LLMConfig) (Embedder, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return classified{embedder}, nil
}

// classified maps langchaingo failures onto retryable error types.
type classified struct {
	embedder embeddings.Embedder
}

func (c classified) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, llmservice.Classify(fmt.Errorf("failed to embed text: %w", err))
	}
	return vec, nil
}
