package embedding

import (
	"context"
	"fmt"

	"lecture-rag/internal/config"
	"lecture-rag/internal/llmservice"

	"github.com/openai/openai-go/v3"
)

const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAIEmbedder(llmConfig config.LLMConfig) *OpenAIEmbedder {
	model := llmConfig.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(llmservice.ClientOptions(llmConfig)...),
		model:      model,
		dimensions: llmConfig.Dimensions,
	}
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, llmservice.Classify(fmt.Errorf("failed to generate embeddings: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

var (
	_ Embedder = (*OpenAIEmbedder)(nil)
	_ Embedder = classified{}
)
