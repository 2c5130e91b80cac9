package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"medassist/internal/config"
	"medassist/internal/models"
)

type pgRecord struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string  `bun:"id,pk"`
	Content       string  `bun:"content,notnull"`
	Source        string  `bun:"source,notnull"`
	Page          int     `bun:"page"`
	ChunkIndex    int     `bun:"chunk_index"`
	Embedding     string  `bun:"embedding,notnull"`
	Score         float32 `bun:"score,scanonly"`
}

// PostgresStore keeps vectors in a pgvector-enabled postgres table, ranked by
// cosine distance.
type PostgresStore struct {
	db         *bun.DB
	dimensions int
}

// NewPostgresStore connects, pings and initializes the schema. A missing DSN,
// an unreachable database or a table built for a different embedding width
// all fail here, at startup.
func NewPostgresStore(ctx context.Context, cfg *config.IndexConfig, dimensions int) (*PostgresStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: database_url is empty", ErrConfig)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive, got %d", ErrConfig, dimensions)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	store := &PostgresStore{db: db, dimensions: dimensions}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: creating vector extension: %v", ErrConfig, err)
	}
	if _, err := s.db.ExecContext(ctx, documentsDDL(s.dimensions)); err != nil {
		return fmt.Errorf("%w: creating documents table: %v", ErrConfig, err)
	}

	// a pre-existing table keeps its column width, so verify it matches the
	// configured embedding model instead of failing on the first upsert
	var dim int
	err := s.db.NewRaw("SELECT atttypmod FROM pg_attribute WHERE attrelid = 'documents'::regclass AND attname = 'embedding'").Scan(ctx, &dim)
	if err != nil {
		return fmt.Errorf("%w: inspecting documents schema: %v", ErrConfig, err)
	}
	if dim != s.dimensions {
		return fmt.Errorf("%w: documents.embedding is vector(%d) but the embedding model produces %d dimensions", ErrConfig, dim, s.dimensions)
	}
	return nil
}

// the column width comes from the configured embedding model, so the schema
// is built with raw DDL rather than a static model tag
func documentsDDL(dimensions int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
	id text PRIMARY KEY,
	content text NOT NULL,
	source text NOT NULL,
	page integer,
	chunk_index integer,
	embedding vector(%d) NOT NULL
)`, dimensions)
}

func (s *PostgresStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]pgRecord, len(records))
	for i, rec := range records {
		rows[i] = pgRecord{
			ID:         rec.ID,
			Content:    rec.Content,
			Source:     rec.Source,
			Page:       rec.Page,
			ChunkIndex: rec.Index,
			Embedding:  vectorLiteral(rec.Embedding),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("source = EXCLUDED.source").
		Set("page = EXCLUDED.page").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: upserting documents: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, topK int) ([]models.Match, error) {
	vec := vectorLiteral(embedding)
	var rows []pgRecord
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("d.*").
		ColumnExpr("1 - (embedding <=> ?::vector) AS score", vec).
		OrderExpr("embedding <=> ?::vector", vec).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity query: %v", ErrUnavailable, err)
	}

	matches := make([]models.Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, models.Match{
			ID:      row.ID,
			Content: row.Content,
			Source:  row.Source,
			Page:    row.Page,
			Score:   row.Score,
		})
	}
	return matches, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// pgvector accepts vectors as '[x,y,z]' literals
func vectorLiteral(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
