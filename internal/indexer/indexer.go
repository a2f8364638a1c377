// Package indexer turns persisted documents into a searchable vector index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"archive-rag/internal/chunker"
	"archive-rag/internal/domain"
	"archive-rag/internal/embedding"
	"archive-rag/internal/vectorindex"
)

// ErrNoDocuments signals an empty or misconfigured source directory. It is
// an operational error surfaced to the operator, never retried.
var ErrNoDocuments = errors.New("no documents to index")

// Stats summarizes a build run.
type Stats struct {
	Documents int
	Chunks    int
}

// Indexer chunks documents, embeds the chunks in batches and inserts the
// pairs into the index. A build always starts from scratch; the completed
// index is persisted as a unit.
type Indexer struct {
	chunker   *chunker.TextChunker
	embedder  embedding.Embedder
	index     vectorindex.Index
	batchSize int
	log       *slog.Logger
}

// New creates an indexer over the given chunker, embedder and index.
func New(ch *chunker.TextChunker, emb embedding.Embedder, idx vectorindex.Index, batchSize int, log *slog.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{chunker: ch, embedder: emb, index: idx, batchSize: batchSize, log: log}
}

// Build rebuilds the index from docs and persists it at path. Documents are
// processed in order and chunks inserted in sequence order, keeping the
// index a single-writer construction.
func (ix *Indexer) Build(ctx context.Context, docs []domain.Document, path string) (Stats, error) {
	var stats Stats
	if len(docs) == 0 {
		return stats, ErrNoDocuments
	}
	if err := ix.index.Reset(ctx); err != nil {
		return stats, fmt.Errorf("reset index: %w", err)
	}

	for _, doc := range docs {
		chunks := ix.chunker.Split(doc)
		if len(chunks) == 0 {
			ix.log.Warn("document has no chunks", "uri", doc.SourceURI)
			continue
		}
		if err := ix.embedAndInsert(ctx, chunks); err != nil {
			return stats, fmt.Errorf("index %s: %w", doc.SourceURI, err)
		}
		stats.Documents++
		stats.Chunks += len(chunks)
	}

	if err := ix.index.Save(path); err != nil {
		return stats, fmt.Errorf("persist index: %w", err)
	}
	ix.log.Info("index built", "documents", stats.Documents, "chunks", stats.Chunks, "path", path)
	return stats, nil
}

// embedAndInsert embeds one document's chunks in batches, inserting each
// batch in chunk order so sequence indices stay aligned with insertion
// order.
func (ix *Indexer) embedAndInsert(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return errors.New("embedding count does not match chunk count")
		}
		for i, ch := range batch {
			if err := ix.index.Insert(ctx, ch, vectors[i]); err != nil {
				return fmt.Errorf("insert chunk %s: %w", ch.ID(), err)
			}
		}
	}
	return nil
}
