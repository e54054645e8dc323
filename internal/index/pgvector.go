package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkessel/trident/internal/models"
	"github.com/pgvector/pgvector-go"
)

// PGVector is the Postgres-backed vector index using the pgvector extension.
// Chunk IDs are the primary key, so dispatch upserts and reingestion never
// duplicates rows.
type PGVector struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// NewPGVector connects the pool and provisions the extension, table and
// ivfflat cosine index.
func NewPGVector(ctx context.Context, dsn, table string, dim int) (*PGVector, error) {
	if table == "" {
		table = "chunks"
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	p := &PGVector{pool: pool, table: table, dim: dim}
	if err := p.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PGVector) initialize(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			job_id TEXT,
			name TEXT,
			path TEXT,
			ordinal INTEGER,
			content TEXT,
			embedding vector(%d),
			created_at TIMESTAMPTZ DEFAULT now()
		)`, p.table, p.dim)
	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, p.table, p.table)
	if _, err := p.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create embedding index: %w", err)
	}

	createDocIndex := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_doc_id_idx ON %s (doc_id)`, p.table, p.table)
	if _, err := p.pool.Exec(ctx, createDocIndex); err != nil {
		return fmt.Errorf("create doc_id index: %w", err)
	}

	return nil
}

// Append implements VectorIndex.
func (p *PGVector) Append(ctx context.Context, chunks []models.Chunk) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, doc_id, job_id, name, path, ordinal, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			job_id = EXCLUDED.job_id,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, p.table)

	for _, c := range chunks {
		if len(c.Embedding) != p.dim {
			return fmt.Errorf("chunk %s embedding dimension %d, want %d", c.ID, len(c.Embedding), p.dim)
		}
		_, err := tx.Exec(ctx, stmt,
			c.ID, c.DocID, c.JobID, c.Name, c.Path, c.Ordinal, c.Text,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Retrieve implements VectorIndex. Cosine distance maps to similarity as
// 1 - distance so higher is better, matching the other backends.
func (p *PGVector) Retrieve(ctx context.Context, embedding []float32, topK int) ([]models.Hit, error) {
	query := fmt.Sprintf(`
		SELECT content, doc_id, name, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, p.table)

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.Hit
	for rows.Next() {
		var h models.Hit
		if err := rows.Scan(&h.Text, &h.DocID, &h.Name, &h.Score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		h.Modality = models.ModalityVector
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// DeleteByDocID implements VectorIndex.
func (p *PGVector) DeleteByDocID(ctx context.Context, docID string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, p.table)
	if _, err := p.pool.Exec(ctx, stmt, docID); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	return nil
}

// Exists implements VectorIndex. The index exists once the table holds rows.
func (p *PGVector) Exists(ctx context.Context) (bool, error) {
	var reg *string
	if err := p.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", p.table).Scan(&reg); err != nil {
		return false, fmt.Errorf("check table: %w", err)
	}
	if reg == nil {
		return false, nil
	}

	var count int64
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", p.table)).Scan(&count); err != nil {
		return false, fmt.Errorf("count rows: %w", err)
	}
	return count > 0, nil
}

// Delete implements VectorIndex.
func (p *PGVector) Delete(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", p.table)); err != nil {
		return fmt.Errorf("drop table %s: %w", p.table, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PGVector) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
