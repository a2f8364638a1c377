// Package completion composes the answer-generation call: prior turns plus
// a token-bounded block of retrieved context.
package completion

import (
	"context"

	"archive-rag/internal/domain"
)

// Completer produces an answer from the question, the prior conversation
// and the retrieved context chunks.
type Completer interface {
	Complete(ctx context.Context, system string, turns []domain.Turn, question string, contextChunks []domain.SearchResult) (string, error)
}
