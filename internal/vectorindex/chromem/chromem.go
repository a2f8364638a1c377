// Package chromem backs the vector index with an embedded chromem-go
// database, persisted as a single exported file.
package chromem

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/philippgille/chromem-go"

	"archive-rag/internal/domain"
	"archive-rag/internal/vectorindex"
)

const collectionName = "archive"

// Store wraps a chromem-go collection. Embeddings are always supplied by
// the caller; the collection's embedding func is a guard that rejects any
// attempt to embed inside the store.
type Store struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// New creates an empty chromem-backed index.
func New() (*Store, error) {
	s := &Store{db: chromem.NewDB()}
	coll, err := s.db.CreateCollection(collectionName, nil, rejectEmbedding)
	if err != nil {
		return nil, err
	}
	s.coll = coll
	return s, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed")
}

// Reset drops and recreates the collection.
func (s *Store) Reset(_ context.Context) error {
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return err
	}
	coll, err := s.db.CreateCollection(collectionName, nil, rejectEmbedding)
	if err != nil {
		return err
	}
	s.coll = coll
	return nil
}

// Insert adds a chunk with its precomputed embedding.
func (s *Store) Insert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	return s.coll.AddDocument(ctx, chromem.Document{
		ID:        chunk.ID(),
		Content:   chunk.Text,
		Embedding: vector,
		Metadata: map[string]string{
			"parent_uri": chunk.ParentURI,
			"seq":        strconv.Itoa(chunk.Index),
			"title":      chunk.Title,
			"author":     chunk.Author,
			"published":  chunk.PublishedAt,
		},
	})
}

// Search queries the collection with a precomputed embedding.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	// chromem rejects nResults larger than the collection
	if n := s.coll.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}
	res, err := s.coll.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(res))
	for _, r := range res {
		seq, _ := strconv.Atoi(r.Metadata["seq"])
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{
				ParentURI:   r.Metadata["parent_uri"],
				Index:       seq,
				Text:        r.Content,
				Title:       r.Metadata["title"],
				Author:      r.Metadata["author"],
				PublishedAt: r.Metadata["published"],
			},
			Score: r.Similarity,
		})
	}
	return results, nil
}

// Save exports the database to a single compressed file.
func (s *Store) Save(path string) error {
	return s.db.ExportToFile(path, true, "", collectionName)
}

// Load imports a previously exported database.
func (s *Store) Load(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return vectorindex.ErrIndexMissing
	}
	if err := s.db.ImportFromFile(path, "", collectionName); err != nil {
		return err
	}
	coll := s.db.GetCollection(collectionName, rejectEmbedding)
	if coll == nil {
		return errors.New("imported index has no archive collection")
	}
	s.coll = coll
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() int { return s.coll.Count() }
