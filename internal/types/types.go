package types

import (
	"context"

	"github.com/xhad/hybridrag/internal/models"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the final answer from a system role and a prompt.
type Generator interface {
	Generate(ctx context.Context, systemRole, prompt string) (string, error)
}

// Index is an append-only vector store with exhaustive search.
type Index interface {
	Add(ctx context.Context, vectors [][]float32, entries []models.Entry) error
	Search(ctx context.Context, query []float32, k int) ([]models.QueryResult, error)
	Len() int
}

// DocumentSource yields a parsed, paginated document.
type DocumentSource interface {
	Document(ctx context.Context) (models.Document, error)
}
