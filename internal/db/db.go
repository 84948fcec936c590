package db

import (
	"context"
	"database/sql"
	"fmt"

	"lecture-rag/internal/config"
	"lecture-rag/internal/hybrid"
	"lecture-rag/internal/models"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// candidatesPerResult widens each of the two searches before fusion.
const candidatesPerResult = 5

// Chunk is one row of lecture_chunks. Embedding is NULL for metadata-only
// figure records.
type Chunk struct {
	bun.BaseModel `bun:"table:lecture_chunks,alias:c"`
	ID            string           `bun:"id,pk,type:uuid"`
	Kind          string           `bun:"kind,notnull"`
	Text          string           `bun:"text,notnull"`
	Source        string           `bun:"source,notnull"`
	Page          int              `bun:"page,notnull"`
	ImagePath     string           `bun:"image_path,nullzero"`
	Embedding     *pgvector.Vector `bun:"embedding,type:vector"`
}

type scoredChunk struct {
	Chunk `bun:",extend"`
	Score float64 `bun:"score,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the bun pgdriver or, when driver is
// "pq", with lib/pq.
func ConnectDB(driver, dsn, password string) (*sql.DB, error) {
	switch driver {
	case "pq":
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sqldb, nil
	case "", "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
		if password != "" {
			opts = append(opts, pgdriver.WithPassword(password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Store keeps records in PostgreSQL with pgvector for similarity and
// full text search for keyword relevance.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Open connects using cfg and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg.Driver, cfg.DSN, cfg.Password)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewStore(db), nil
}

// EnsureSchema creates the vector extension, the table and its indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Chunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS lecture_chunks_text_fts ON lecture_chunks USING gin (to_tsvector('english', text))",
		"CREATE INDEX IF NOT EXISTS lecture_chunks_source_page ON lecture_chunks (source, page)",
	}
	for _, stmt := range indexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rec models.Record) error {
	row := &Chunk{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		Text:      rec.Text,
		Source:    rec.Source,
		Page:      rec.Page,
		ImagePath: rec.ImagePath,
	}
	if rec.HasVector() {
		v := pgvector.NewVector(rec.Vector)
		row.Embedding = &v
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// HybridSearch runs a cosine similarity search and a full text search over
// records that carry a vector and fuses both rankings with weight alpha.
func (s *Store) HybridSearch(ctx context.Context, query string, vector []float32, limit int, alpha float64) ([]models.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	pool := limit * candidatesPerResult

	var byVector []scoredChunk
	err := s.db.NewSelect().
		Model(&byVector).
		ColumnExpr("c.*").
		ColumnExpr("1 - (c.embedding <=> ?) AS score", pgvector.NewVector(vector)).
		Where("c.embedding IS NOT NULL").
		OrderExpr("score DESC").
		Limit(pool).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search by vector: %w", err)
	}

	var byKeyword []scoredChunk
	err = s.db.NewSelect().
		Model(&byKeyword).
		ColumnExpr("c.*").
		ColumnExpr("ts_rank_cd(to_tsvector('english', c.text), plainto_tsquery('english', ?)) AS score", query).
		Where("c.embedding IS NOT NULL").
		Where("to_tsvector('english', c.text) @@ plainto_tsquery('english', ?)", query).
		OrderExpr("score DESC").
		Limit(pool).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search by keyword: %w", err)
	}

	log.Debug().Int("vector", len(byVector)).Int("keyword", len(byKeyword)).Msg("Hybrid candidates")
	return fuse(byVector, byKeyword, limit, alpha), nil
}

// fuse merges the two candidate lists (vector hits first, then keyword-only
// hits) and returns the best limit records.
func fuse(byVector, byKeyword []scoredChunk, limit int, alpha float64) []models.Record {
	rows := make(map[string]Chunk, len(byVector)+len(byKeyword))
	index := make(map[string]int, len(byVector)+len(byKeyword))
	var candidates []hybrid.Candidate

	for _, r := range byVector {
		index[r.ID] = len(candidates)
		rows[r.ID] = r.Chunk
		candidates = append(candidates, hybrid.Candidate{ID: r.ID, Vector: r.Score})
	}
	var minVector float64
	for i, c := range candidates {
		if i == 0 || c.Vector < minVector {
			minVector = c.Vector
		}
	}
	for _, r := range byKeyword {
		i, ok := index[r.ID]
		if !ok {
			// outside the vector pool: rank it with the weakest vector score seen
			i = len(candidates)
			index[r.ID] = i
			rows[r.ID] = r.Chunk
			candidates = append(candidates, hybrid.Candidate{ID: r.ID, Vector: minVector})
		}
		candidates[i].Keyword = r.Score
		candidates[i].Matched = true
	}

	fused := hybrid.Fuse(candidates, alpha)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	records := make([]models.Record, 0, len(fused))
	for _, f := range fused {
		records = append(records, toRecord(rows[f.ID]))
	}
	return records
}

// Figures returns the metadata-only figure records of one page (1-based).
func (s *Store) Figures(ctx context.Context, source string, page int) ([]models.Record, error) {
	var rows []Chunk
	err := s.db.NewSelect().
		Model(&rows).
		Where("c.kind = ?", string(models.KindFigure)).
		Where("c.source = ?", source).
		Where("c.page = ?", page).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read figures: %w", err)
	}
	records := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, toRecord(r))
	}
	return records, nil
}

// Count returns the number of vector records and figure records.
func (s *Store) Count(ctx context.Context) (int, int, error) {
	chunks, err := s.db.NewSelect().Model((*Chunk)(nil)).Where("c.embedding IS NOT NULL").Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	figures, err := s.db.NewSelect().Model((*Chunk)(nil)).Where("c.embedding IS NULL").Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return chunks, figures, nil
}

// Drop removes the table.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.db.NewDropTable().Model((*Chunk)(nil)).IfExists().Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRecord(c Chunk) models.Record {
	rec := models.Record{
		ID:        c.ID,
		Kind:      models.Kind(c.Kind),
		Text:      c.Text,
		Source:    c.Source,
		Page:      c.Page,
		ImagePath: c.ImagePath,
	}
	if c.Embedding != nil {
		rec.Vector = c.Embedding.Slice()
	}
	return rec
}
