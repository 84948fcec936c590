package llmservice

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"lecture-rag/internal/config"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIGenerator calls the OpenAI chat completions API. The SDK's own
// retries are disabled; retrying belongs to the backoff.Controller.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewOpenAIGenerator(llmConfig config.LLMConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      openai.NewClient(ClientOptions(llmConfig)...),
		model:       llmConfig.Model,
		temperature: llmConfig.Temperature,
	}
}

// ClientOptions builds openai-go request options for llmConfig.
func ClientOptions(llmConfig config.LLMConfig) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		option.WithMaxRetries(0),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}
	return opts
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return g.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	})
}

func (g *OpenAIGenerator) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	return g.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		}),
	})
}

func (g *OpenAIGenerator) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.model),
		Messages:    messages,
		Temperature: openai.Float(g.temperature),
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Classify(fmt.Errorf("OpenAI API call failed: %w", err))
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
