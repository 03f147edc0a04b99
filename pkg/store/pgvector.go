package store

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PGVectorIndex keeps the same append-only, position-addressed contract as
// FlatIndex on top of a pgvector table. No ANN index is created, so
// Postgres performs an exact scan.
type PGVectorIndex struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool

	mu    sync.RWMutex
	count int
}

var _ types.Index = (*PGVectorIndex)(nil)

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*PGVectorIndex, error) {
	if config.TableName == "" {
		config.TableName = "knowledge_base"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorIndex{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorIndex) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			provenance TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	var count int64
	err = vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}
	vs.count = int(count)

	return nil
}

func (vs *PGVectorIndex) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.count
}

// Add appends the batch in one transaction. Positions continue from the
// current maximum id.
func (vs *PGVectorIndex) Add(ctx context.Context, vectors [][]float32, entries []models.Entry) error {
	if len(vectors) != len(entries) {
		return types.WrapOp("add", fmt.Errorf("%w: %d vectors, %d metadata entries",
			types.ErrDimensionMismatch, len(vectors), len(entries)))
	}
	for i, v := range vectors {
		if len(v) != vs.config.VectorDim {
			return types.WrapOp("add", fmt.Errorf("%w: vector %d has length %d, want %d",
				types.ErrDimensionMismatch, i, len(v), vs.config.VectorDim))
		}
	}
	if len(vectors) == 0 {
		return nil
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("LOCK TABLE %s IN EXCLUSIVE MODE", vs.config.TableName)); err != nil {
		return fmt.Errorf("failed to lock table: %w", err)
	}

	var next int64
	err = tx.QueryRow(ctx, fmt.Sprintf("SELECT COALESCE(MAX(id) + 1, 0) FROM %s", vs.config.TableName)).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read next position: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, provenance, embedding, metadata)
		VALUES ($1, $2, $3, $4)`,
		vs.config.TableName)

	for i, v := range vectors {
		entry := sanitizeEntry(entries[i])
		_, err = tx.Exec(ctx, stmt,
			next+int64(i),
			string(entry.Provenance),
			pgvector.NewVector(v),
			entry,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	vs.count = int(next) + len(vectors)
	return nil
}

// Search orders by L2 distance and squares it to match FlatIndex.
func (vs *PGVectorIndex) Search(ctx context.Context, query []float32, k int) ([]models.QueryResult, error) {
	if k < 1 {
		return nil, types.WrapOp("search", fmt.Errorf("k must be positive, got %d", k))
	}
	if len(query) != vs.config.VectorDim {
		return nil, types.WrapOp("search", fmt.Errorf("%w: query has length %d, want %d",
			types.ErrDimensionMismatch, len(query), vs.config.VectorDim))
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()

	q := fmt.Sprintf(`
		SELECT id, metadata, embedding <-> $1 AS distance
		FROM %s
		ORDER BY distance, id
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, q, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var results []models.QueryResult
	for rows.Next() {
		var (
			id       int64
			entry    models.Entry
			distance float64
		)
		if err := rows.Scan(&id, &entry, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, models.QueryResult{
			Distance: float32(distance * distance),
			Position: int(id),
			Entry:    entry,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return results, nil
}

func (vs *PGVectorIndex) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// sanitizeEntry drops invalid UTF-8 from chunk text; Postgres rejects it in JSONB.
func sanitizeEntry(e models.Entry) models.Entry {
	if e.Chunk != nil && !utf8.ValidString(e.Chunk.Text) {
		c := *e.Chunk
		c.Text = sanitizeUTF8(c.Text)
		e.Chunk = &c
	}
	return e
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
