package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lecture-rag/internal/backoff"
	"lecture-rag/internal/embedding"
	"lecture-rag/internal/figures"
	"lecture-rag/internal/helper"
	"lecture-rag/internal/llmservice"
	"lecture-rag/internal/models"
	"lecture-rag/internal/parser"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var ErrMissingFolder = errors.New("document folder not found")

// FigureSkip records an image that was not indexed. Page is 1-based, 0 when
// the document's images could not be read at all.
type FigureSkip struct {
	Page   int    `json:"page"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// IndexReport summarises the ingestion of one document.
type IndexReport struct {
	Source        string       `json:"source"`
	Pages         int          `json:"pages"`
	Chunks        int          `json:"chunks"`
	ChunkFailures int          `json:"chunkFailures"`
	Figures       int          `json:"figures"`
	Captions      int          `json:"captions"`
	Skipped       []FigureSkip `json:"skipped,omitempty"`
}

// Indexer turns documents into chunk and figure records.
type Indexer struct {
	store    VectorStore
	embedder embedding.Embedder
	backoff  *backoff.Controller
	loader   PageLoader
	chunker  parser.Chunker

	extractor FigureSource
	figures   FigureSaver

	captioner llmservice.Generator
	throttle  *rate.Limiter
}

type IndexerOption func(*Indexer)

// WithFigures enables figure extraction. Without it documents are indexed as
// text only.
func WithFigures(extractor FigureSource, saver FigureSaver) IndexerOption {
	return func(ix *Indexer) {
		ix.extractor = extractor
		ix.figures = saver
	}
}

// WithCaptions captions every figure with generator, waiting at least delay
// between two caption requests.
func WithCaptions(generator llmservice.Generator, delay time.Duration) IndexerOption {
	return func(ix *Indexer) {
		ix.captioner = generator
		limit := rate.Inf
		if delay > 0 {
			limit = rate.Every(delay)
		}
		ix.throttle = rate.NewLimiter(limit, 1)
	}
}

// WithLoader replaces the file system page loader.
func WithLoader(loader PageLoader) IndexerOption {
	return func(ix *Indexer) {
		ix.loader = loader
	}
}

func NewIndexer(store VectorStore, embedder embedding.Embedder, ctrl *backoff.Controller, chunker parser.Chunker, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		store:    store,
		embedder: embedder,
		backoff:  ctrl,
		loader:   parser.FileLoader{},
		chunker:  chunker,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexDirectory indexes every supported file in dir in name order. A missing
// folder aborts before anything is written. A failing document does not stop
// the others; all document errors are returned joined.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) ([]*IndexReport, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingFolder, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	if err := ix.store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	var reports []*IndexReport
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !parser.IsSupported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		report, err := ix.IndexFile(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Failed to index document")
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// IndexFile indexes the text chunks and then the figures of one document.
// Failures of single chunks or images are counted in the report; only a
// document that cannot be loaded returns an error.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*IndexReport, error) {
	source := filepath.Base(path)
	pages, err := ix.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	report := &IndexReport{Source: source, Pages: len(pages)}
	log.Info().Str("source", source).Int("pages", len(pages)).Msg("Indexing document")

	for _, page := range pages {
		for _, chunk := range ix.chunker.Chunk(parser.Normalize(page.Text)) {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			if err := ix.indexChunk(ctx, source, page.Number, chunk); err != nil {
				log.Warn().Err(err).Str("source", source).Int("page", page.Number).Msg("Skipping chunk")
				report.ChunkFailures++
				continue
			}
			report.Chunks++
		}
	}

	if ix.extractor != nil && ix.figures != nil && ix.extractor.Supports(path) {
		ix.indexFigures(ctx, path, report)
	}

	log.Info().
		Str("source", source).
		Int("chunks", report.Chunks).
		Int("chunk_failures", report.ChunkFailures).
		Int("figures", report.Figures).
		Int("figures_skipped", len(report.Skipped)).
		Msg("Finished indexing")
	return report, nil
}

func (ix *Indexer) indexChunk(ctx context.Context, source string, page int, text string) error {
	vector, err := backoff.Call(ctx, ix.backoff, "embed chunk", func(ctx context.Context) ([]float32, error) {
		return ix.embedder.EmbedQuery(ctx, text)
	})
	if err != nil {
		return err
	}
	return ix.insert(ctx, models.Record{
		Kind:   models.KindChunk,
		Text:   text,
		Source: source,
		Page:   page,
		Vector: vector,
	})
}

func (ix *Indexer) indexFigures(ctx context.Context, path string, report *IndexReport) {
	source := filepath.Base(path)
	base := models.FigureBaseName(source)
	seq := make(map[int]int)

	for fig, err := range ix.extractor.Figures(path) {
		if err == nil {
			err = ix.indexFigure(ctx, source, base, seq[fig.Page], fig)
			seq[fig.Page]++
		}
		if err != nil {
			log.Warn().Err(err).Str("source", source).Int("page", fig.Page).Str("image", fig.Name).Msg("Skipping figure")
			report.Skipped = append(report.Skipped, FigureSkip{Page: fig.Page, Name: fig.Name, Reason: err.Error()})
			continue
		}
		report.Figures++
		if ix.captioner != nil {
			report.Captions++
		}
	}
}

func (ix *Indexer) indexFigure(ctx context.Context, source, base string, seq int, fig figures.Figure) error {
	webPath, err := ix.figures.Save(base, fig.Page, seq, fig.Image)
	if err != nil {
		return err
	}

	if ix.captioner != nil {
		caption, err := ix.caption(ctx, fig)
		if err != nil {
			return err
		}
		vector, err := backoff.Call(ctx, ix.backoff, "embed caption", func(ctx context.Context) ([]float32, error) {
			return ix.embedder.EmbedQuery(ctx, caption)
		})
		if err != nil {
			return err
		}
		err = ix.insert(ctx, models.Record{
			Kind:      models.KindChunk,
			Text:      caption,
			Source:    source,
			Page:      fig.Page,
			ImagePath: webPath,
			Vector:    vector,
		})
		if err != nil {
			return err
		}
	}

	return ix.insert(ctx, models.Record{
		Kind:      models.KindFigure,
		Text:      models.FigureMarker,
		Source:    source,
		Page:      fig.Page,
		ImagePath: webPath,
	})
}

func (ix *Indexer) caption(ctx context.Context, fig figures.Figure) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, fig.Image); err != nil {
		return "", fmt.Errorf("failed to encode figure: %w", err)
	}
	if err := ix.throttle.Wait(ctx); err != nil {
		return "", err
	}
	return backoff.Call(ctx, ix.backoff, "caption figure", func(ctx context.Context) (string, error) {
		return ix.captioner.Describe(ctx, models.CaptionPrompt, buf.Bytes(), "image/png")
	})
}

func (ix *Indexer) insert(ctx context.Context, rec models.Record) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	rec.ID = id
	if err := ix.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}
