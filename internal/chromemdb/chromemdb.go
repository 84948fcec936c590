package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"lecture-rag/internal/hybrid"
	"lecture-rag/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// Metadata keys.
const (
	metaKind      = "kind"
	metaSource    = "source"
	metaPage      = "page"
	metaImagePath = "image_path"
)

// figureSuffix names the collection that holds metadata-only figure records.
const figureSuffix = "_figures"

// chromem needs an embedding on every document; figure records get this one
// and are only ever read through metadata filters.
var placeholderEmbedding = []float32{1}

// VectorDBManager stores records in an embedded chromem-go database. Records
// with a vector go to the main collection; metadata-only figure records go to
// a companion collection.
type VectorDBManager struct {
	db       *chromem.DB
	name     string
	dbPath   string
	compress bool

	chunks  *chromem.Collection
	figures *chromem.Collection
}

// NewVectorDBManager opens (or creates) the database at dbPath. inMemory
// skips persistence entirely.
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	return &VectorDBManager{
		db:       db,
		name:     collectionName,
		dbPath:   dbPath,
		compress: compress,
	}, nil
}

// EnsureSchema creates both collections if they do not exist yet.
func (m *VectorDBManager) EnsureSchema(ctx context.Context) error {
	if m.chunks != nil && m.figures != nil {
		return nil
	}
	chunks, err := m.db.GetOrCreateCollection(m.name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	figures, err := m.db.GetOrCreateCollection(m.name+figureSuffix, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.chunks, m.figures = chunks, figures
	log.Debug().Str("collection", m.name).Int("chunks", chunks.Count()).Int("figures", figures.Count()).Msg("Collections ready")
	return nil
}

// Insert adds one record. It never overwrites: callers supply fresh IDs.
func (m *VectorDBManager) Insert(ctx context.Context, rec models.Record) error {
	if err := m.EnsureSchema(ctx); err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Metadata:  toMetadata(rec),
		Embedding: rec.Vector,
	}
	coll := m.chunks
	if !rec.HasVector() {
		coll = m.figures
		doc.Embedding = placeholderEmbedding
	}
	if err := coll.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add document: %v", err)
	}
	return nil
}

// HybridSearch ranks every vector record by similarity to vector and by BM25
// relevance to query, fuses both with weight alpha and returns the top limit.
func (m *VectorDBManager) HybridSearch(ctx context.Context, query string, vector []float32, limit int, alpha float64) ([]models.Record, error) {
	if err := m.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	n := m.chunks.Count()
	if n == 0 || limit <= 0 {
		return nil, nil
	}

	results, err := m.chunks.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	keyword := hybrid.BM25(query, contents)

	byID := make(map[string]chromem.Result, len(results))
	candidates := make([]hybrid.Candidate, len(results))
	for i, r := range results {
		byID[r.ID] = r
		candidates[i] = hybrid.Candidate{
			ID:      r.ID,
			Vector:  float64(r.Similarity),
			Keyword: keyword[i],
			Matched: keyword[i] > 0,
		}
	}

	fused := hybrid.Fuse(candidates, alpha)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	records := make([]models.Record, 0, len(fused))
	for _, f := range fused {
		r := byID[f.ID]
		records = append(records, fromDocument(r.ID, r.Content, r.Metadata))
	}
	return records, nil
}

// Figures returns the metadata-only figure records of one page (1-based).
func (m *VectorDBManager) Figures(ctx context.Context, source string, page int) ([]models.Record, error) {
	if err := m.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	n := m.figures.Count()
	if n == 0 {
		return nil, nil
	}
	where := map[string]string{metaSource: source, metaPage: strconv.Itoa(page)}
	results, err := m.figures.QueryEmbedding(ctx, placeholderEmbedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query figures: %v", err)
	}
	records := make([]models.Record, 0, len(results))
	for _, r := range results {
		records = append(records, fromDocument(r.ID, r.Content, r.Metadata))
	}
	return records, nil
}

// Count returns the number of vector records and figure records.
func (m *VectorDBManager) Count(ctx context.Context) (int, int, error) {
	if err := m.EnsureSchema(ctx); err != nil {
		return 0, 0, err
	}
	return m.chunks.Count(), m.figures.Count(), nil
}

// Drop deletes both collections.
func (m *VectorDBManager) Drop(ctx context.Context) error {
	for _, name := range []string{m.name, m.name + figureSuffix} {
		if err := m.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
	}
	m.chunks, m.figures = nil, nil
	return nil
}

// Export writes the whole database to a gob file under the database path,
// encrypted when encryptionKey is set (it must then be 32 bytes long).
func (m *VectorDBManager) Export(ctx context.Context, encryptionKey string) (string, error) {
	if m.dbPath == "" {
		return "", fmt.Errorf("db path is required")
	}
	filePath := filepath.Join(m.dbPath, m.name+".gob")
	if m.compress {
		filePath += ".gz"
	}
	if encryptionKey != "" {
		filePath += ".enc"
	}
	log.Debug().Str("file", filePath).Bool("compress", m.compress).Msg("Exporting database")
	if err := m.db.ExportToFile(filePath, m.compress, encryptionKey); err != nil {
		return "", fmt.Errorf("failed to export database: %v", err)
	}
	return filePath, nil
}

// Import loads a file written by Export, replacing collections of the same name.
func (m *VectorDBManager) Import(ctx context.Context, filePath, encryptionKey string) error {
	if err := m.db.ImportFromFile(filePath, encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	m.chunks, m.figures = nil, nil
	return m.EnsureSchema(ctx)
}

// Close is a no-op: persistent chromem databases write through on every insert.
func (m *VectorDBManager) Close() error {
	return nil
}

func toMetadata(rec models.Record) map[string]string {
	meta := map[string]string{
		metaKind:   string(rec.Kind),
		metaSource: rec.Source,
		metaPage:   strconv.Itoa(rec.Page),
	}
	if rec.ImagePath != "" {
		meta[metaImagePath] = rec.ImagePath
	}
	return meta
}

func fromDocument(id, content string, meta map[string]string) models.Record {
	page, _ := strconv.Atoi(meta[metaPage])
	return models.Record{
		ID:        id,
		Kind:      models.Kind(meta[metaKind]),
		Text:      content,
		Source:    meta[metaSource],
		Page:      page,
		ImagePath: meta[metaImagePath],
	}
}
