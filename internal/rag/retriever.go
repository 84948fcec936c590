package rag

import (
	"context"
	"fmt"
	"strings"

	"lecture-rag/internal/backoff"
	"lecture-rag/internal/embedding"
	"lecture-rag/internal/hybrid"
	"lecture-rag/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTopK = 6
	// DefaultAlpha weights vector similarity and keyword relevance equally.
	DefaultAlpha = hybrid.DefaultAlpha
)

// Retriever finds the stored records that best match a question.
type Retriever struct {
	store    VectorStore
	embedder embedding.Embedder
	backoff  *backoff.Controller
	topK     int
	alpha    float64
}

// NewRetriever returns a Retriever; topK <= 0 selects DefaultTopK.
func NewRetriever(store VectorStore, embedder embedding.Embedder, ctrl *backoff.Controller, topK int, alpha float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, embedder: embedder, backoff: ctrl, topK: topK, alpha: alpha}
}

// Retrieve embeds question and runs a hybrid search. Items keep the store's
// order and carry 0-based pages.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.RetrievedItem, error) {
	vector, err := backoff.Call(ctx, r.backoff, "embed question", func(ctx context.Context) ([]float32, error) {
		return r.embedder.EmbedQuery(ctx, question)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	records, err := r.store.HybridSearch(ctx, question, vector, r.topK, r.alpha)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	log.Debug().Int("results", len(records)).Int("k", r.topK).Float64("alpha", r.alpha).Msg("Hybrid search")

	items := make([]models.RetrievedItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toItem(rec))
	}
	return items, nil
}

// toItem converts a stored record to the caller-facing form. A record without
// a page counts as page 1.
func toItem(rec models.Record) models.RetrievedItem {
	source := rec.Source
	if source == "" {
		source = models.DefaultSource
	}
	return models.RetrievedItem{
		Text:      strings.TrimSpace(rec.Text),
		Source:    source,
		Page:      max(rec.Page, 1) - 1,
		ImagePath: rec.ImagePath,
	}
}

var _ Searcher = (*Retriever)(nil)
