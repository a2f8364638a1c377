// Package embedding defines the embedding-provider boundary.
package embedding

import "context"

// Embedder converts free text into a fixed-dimension vector representation.
// Dimension is only known after the first successful call.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
