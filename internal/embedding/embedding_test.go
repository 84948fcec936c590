package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"lecture-rag/internal/backoff"
	"lecture-rag/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder_EmbedQuery(t *testing.T) {
	var req struct {
		Model      string `json:"model"`
		Input      string `json:"input"`
		Dimensions int    `json:"dimensions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-small",`+
			`"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],`+
			`"usage":{"prompt_tokens":3,"total_tokens":3}}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(config.LLMConfig{Provider: "openai", Key: "k", BaseURL: srv.URL + "/", Dimensions: 3})
	vec, err := e.EmbedQuery(context.Background(), "pressure correction")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
	assert.Equal(t, DefaultOpenAIModel, req.Model)
	assert.Equal(t, "pressure correction", req.Input)
	assert.Equal(t, 3, req.Dimensions)
}

func TestOpenAIEmbedder_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limit"}}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(config.LLMConfig{Provider: "openai", Key: "k", BaseURL: srv.URL + "/"})
	_, err := e.EmbedQuery(context.Background(), "x")
	var rl *backoff.RateLimitError
	assert.ErrorAs(t, err, &rl)
}

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return nil, s.err
}

func (s stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1}, nil
}

func TestClassifiedEmbedder(t *testing.T) {
	vec, err := classified{stubEmbedder{}}.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)

	_, err = classified{stubEmbedder{err: errors.New("unexpected status code: 500")}}.EmbedQuery(context.Background(), "x")
	var te *backoff.TransientError
	assert.ErrorAs(t, err, &te)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "cohere"})
	assert.Error(t, err)
}
