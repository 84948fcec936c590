package rag

import (
	"context"
	"errors"
	"image"
	"image/color"
	"iter"
	"strings"
	"sync"
	"time"

	"lecture-rag/internal/backoff"
	"lecture-rag/internal/figures"
	"lecture-rag/internal/models"
)

// memStore keeps records in insertion order.
type memStore struct {
	mu          sync.Mutex
	records     []models.Record
	schemaCalls int
	searchQuery string
	searchLimit int
	searchAlpha float64
	results     []models.Record
}

func (s *memStore) EnsureSchema(context.Context) error {
	s.schemaCalls++
	return nil
}

func (s *memStore) Insert(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memStore) HybridSearch(_ context.Context, query string, _ []float32, limit int, alpha float64) ([]models.Record, error) {
	s.searchQuery, s.searchLimit, s.searchAlpha = query, limit, alpha
	return s.results, nil
}

func (s *memStore) Figures(_ context.Context, source string, page int) ([]models.Record, error) {
	var out []models.Record
	for _, r := range s.records {
		if r.Kind == models.KindFigure && r.Source == source && r.Page == page {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) byKind(kind models.Kind) []models.Record {
	var out []models.Record
	for _, r := range s.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// fakeEmbedder returns a small non-zero vector derived from the text length.
type fakeEmbedder struct {
	calls int
	fail  func(text string) error
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail != nil {
		if err := e.fail(text); err != nil {
			return nil, err
		}
	}
	return []float32{1, float32(len(text)%7) + 1, 2}, nil
}

// fakeGenerator records prompts and replays scripted errors before replying.
type fakeGenerator struct {
	reply    string
	errs     []error
	calls    int
	system   string
	user     string
	images   [][]byte
	mimeType string
}

func (g *fakeGenerator) next() error {
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return err
	}
	return nil
}

func (g *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	g.system, g.user = system, user
	if err := g.next(); err != nil {
		return "", err
	}
	return g.reply, nil
}

func (g *fakeGenerator) Describe(_ context.Context, prompt string, img []byte, mimeType string) (string, error) {
	g.user, g.mimeType = prompt, mimeType
	g.images = append(g.images, img)
	if err := g.next(); err != nil {
		return "", err
	}
	return g.reply, nil
}

// pagesLoader serves fixed pages for any path.
type pagesLoader []models.Page

func (l pagesLoader) Load(string) ([]models.Page, error) { return l, nil }

type failingLoader struct{}

func (failingLoader) Load(string) ([]models.Page, error) { return nil, errors.New("broken file") }

type figureResult struct {
	fig figures.Figure
	err error
}

// fakeFigures yields scripted figures for PDF paths.
type fakeFigures []figureResult

func (f fakeFigures) Supports(path string) bool { return strings.HasSuffix(path, ".pdf") }

func (f fakeFigures) Figures(string) iter.Seq2[figures.Figure, error] {
	return func(yield func(figures.Figure, error) bool) {
		for _, r := range f {
			if !yield(r.fig, r.err) {
				return
			}
		}
	}
}

// fakeSearcher returns fixed items.
type fakeSearcher struct {
	items []models.RetrievedItem
	err   error
}

func (s fakeSearcher) Retrieve(context.Context, string) ([]models.RetrievedItem, error) {
	return s.items, s.err
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "flux"
	}
	return strings.Join(w, " ")
}

func noSleepController() *backoff.Controller {
	c := backoff.New(3, time.Millisecond)
	c.Sleep = func(context.Context, time.Duration) error { return nil }
	return c
}
