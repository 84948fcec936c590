package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lecture-rag/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyResponse = errors.New("model returned no content")

// Generator produces text from a model. Errors are classified so that rate
// limits and server failures can be retried by a backoff.Controller.
type Generator interface {
	// Generate answers one user turn under a system instruction.
	Generate(ctx context.Context, system, user string) (string, error)
	// Describe returns the model's response to prompt about an image.
	Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// New returns the Generator for llmConfig.Provider.
func New(llmConfig config.LLMConfig) (Generator, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating generator")
	switch strings.ToLower(llmConfig.Provider) {
	case "openai":
		return NewOpenAIGenerator(llmConfig), nil
	case "openrouter", "ollama":
		model, err := newLangchainModel(llmConfig)
		if err != nil {
			return nil, err
		}
		return &LangchainGenerator{Model: model, Temperature: llmConfig.Temperature}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", llmConfig.Provider)
	}
}

func newLangchainModel(llmConfig config.LLMConfig) (llms.Model, error) {
	if strings.EqualFold(llmConfig.Provider, "ollama") {
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return llm, nil
	}
	llm, err := lcopenai.New(
		lcopenai.WithBaseURL(llmConfig.BaseURL),
		lcopenai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		lcopenai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai compatible client: %w", err)
	}
	return llm, nil
}

// LangchainGenerator talks to any langchaingo chat model.
type LangchainGenerator struct {
	Model       llms.Model
	Temperature float64
}

func (g *LangchainGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	return g.generate(ctx, messages)
}

func (g *LangchainGenerator) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	messages := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextContent{Text: prompt},
			llms.BinaryPart(mimeType, image),
		},
	}}
	return g.generate(ctx, messages)
}

func (g *LangchainGenerator) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	res, err := g.Model.GenerateContent(ctx, messages, llms.WithTemperature(g.Temperature))
	if err != nil {
		return "", Classify(fmt.Errorf("failed to generate content: %w", err))
	}
	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}

var (
	_ Generator = (*LangchainGenerator)(nil)
	_ Generator = (*OpenAIGenerator)(nil)
)
