// Package rag ties loaders, the embedding and generation capabilities and a
// vector store into the indexing and question answering pipeline.
package rag

import (
	"context"
	"image"
	"iter"

	"lecture-rag/internal/figures"
	"lecture-rag/internal/models"
)

// VectorStore is the storage boundary shared by the chromem and Postgres
// backends. Pages are 1-based.
type VectorStore interface {
	// EnsureSchema creates collections, tables and indexes; it is idempotent.
	EnsureSchema(ctx context.Context) error
	// Insert appends one record; records without a vector are metadata-only.
	Insert(ctx context.Context, rec models.Record) error
	// HybridSearch blends vector similarity and keyword relevance with weight
	// alpha (1 = vector only) and returns at most limit records, best first.
	HybridSearch(ctx context.Context, query string, vector []float32, limit int, alpha float64) ([]models.Record, error)
	// Figures returns the metadata-only figure records of one page.
	Figures(ctx context.Context, source string, page int) ([]models.Record, error)
	Close() error
}

// PageLoader returns the pages of a document.
type PageLoader interface {
	Load(path string) ([]models.Page, error)
}

// FigureSource yields the figures embedded in a document.
type FigureSource interface {
	Supports(path string) bool
	Figures(path string) iter.Seq2[figures.Figure, error]
}

// FigureSaver persists figure images and returns their web paths.
type FigureSaver interface {
	Save(base string, page1, seq int, img image.Image) (string, error)
}

// FigureResolver locates figure files for retrieved items.
type FigureResolver interface {
	Lookup(source string, page0 int) (string, bool)
	AbsURL(path string) string
}

// Searcher retrieves items for a question.
type Searcher interface {
	Retrieve(ctx context.Context, question string) ([]models.RetrievedItem, error)
}
