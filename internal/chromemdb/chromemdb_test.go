package chromemdb

import (
	"context"
	"testing"

	"lecture-rag/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager("", "LectureChunk", true, false)
	require.NoError(t, err)
	require.NoError(t, m.EnsureSchema(context.Background()))
	return m
}

func chunk(text, source string, page int, vec ...float32) models.Record {
	return models.Record{ID: uuid.NewString(), Kind: models.KindChunk, Text: text, Source: source, Page: page, Vector: vec}
}

func TestInsertRoutesByVector(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)

	require.NoError(t, m.Insert(ctx, chunk("pressure correction", "CFD.pdf", 8, 1, 0)))
	require.NoError(t, m.Insert(ctx, models.Record{
		ID: uuid.NewString(), Kind: models.KindFigure, Text: models.FigureMarker,
		Source: "CFD.pdf", Page: 8, ImagePath: "/static/figures/CFD_p8.png",
	}))

	chunks, figures, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)
	assert.Equal(t, 1, figures)
}

func TestHybridSearch(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)

	require.NoError(t, m.Insert(ctx, chunk("turbulence modelling with k epsilon", "CFD.pdf", 3, 1, 0)))
	require.NoError(t, m.Insert(ctx, chunk("the SIMPLE pressure correction loop", "CFD.pdf", 8, 0.6, 0.8)))
	require.NoError(t, m.Insert(ctx, chunk("boundary layer separation", "Fluids.pdf", 2, 0, 1)))

	// Vector favours the first record, keywords the second; equal weights
	// let the second win because it scores on both sides.
	got, err := m.HybridSearch(ctx, "pressure correction", []float32{0.9, 0.44}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "the SIMPLE pressure correction loop", got[0].Text)
	assert.Equal(t, "CFD.pdf", got[0].Source)
	assert.Equal(t, 8, got[0].Page)
	assert.Equal(t, models.KindChunk, got[0].Kind)
	assert.Equal(t, "turbulence modelling with k epsilon", got[1].Text)

	vectorOnly, err := m.HybridSearch(ctx, "pressure correction", []float32{0, 1}, 1, 1)
	require.NoError(t, err)
	require.Len(t, vectorOnly, 1)
	assert.Equal(t, "boundary layer separation", vectorOnly[0].Text)
}

func TestHybridSearch_Empty(t *testing.T) {
	got, err := newTestStore(t).HybridSearch(context.Background(), "q", []float32{1, 0}, 6, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFigures(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)

	for _, page := range []int{1, 2, 2} {
		require.NoError(t, m.Insert(ctx, models.Record{
			ID: uuid.NewString(), Kind: models.KindFigure, Text: models.FigureMarker,
			Source: "CFD.pdf", Page: page, ImagePath: "/static/figures/" + models.FigureFileName("CFD", page),
		}))
	}
	require.NoError(t, m.Insert(ctx, chunk("caption of figure", "CFD.pdf", 2, 1, 0)))

	got, err := m.Figures(ctx, "CFD.pdf", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, models.KindFigure, r.Kind)
		assert.Equal(t, "/static/figures/CFD_p2.png", r.ImagePath)
		assert.Equal(t, 2, r.Page)
	}

	none, err := m.Figures(ctx, "Other.pdf", 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	require.NoError(t, m.Insert(ctx, chunk("x", "a.pdf", 1, 1)))
	require.NoError(t, m.Drop(ctx))

	chunks, figures, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, chunks)
	assert.Zero(t, figures)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src, err := NewVectorDBManager(dir, "LectureChunk", false, false)
	require.NoError(t, err)
	require.NoError(t, src.Insert(ctx, chunk("exported text", "a.pdf", 1, 1, 0)))

	path, err := src.Export(ctx, "")
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, dst.Import(ctx, path, ""))
	got, err := dst.HybridSearch(ctx, "exported", []float32{1, 0}, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "exported text", got[0].Text)
}
