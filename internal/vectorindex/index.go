// Package vectorindex defines the nearest-neighbor index boundary.
package vectorindex

import (
	"context"
	"errors"

	"archive-rag/internal/domain"
)

// ErrIndexMissing is returned by Load when no persisted index exists at the
// given location. The query path treats this as a fatal configuration error.
var ErrIndexMissing = errors.New("vector index not found")

// Index stores (vector, chunk) pairs and supports similarity search.
// Search returns results by descending similarity, ties broken by insertion
// order. Load happens once at process start, never mid-query.
type Index interface {
	// Reset drops all stored pairs; a rebuild always starts from scratch.
	Reset(ctx context.Context) error
	Insert(ctx context.Context, chunk domain.Chunk, vector []float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Save(path string) error
	Load(path string) error
	Count() int
}
