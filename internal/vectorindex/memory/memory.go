// Package memory is a file-backed brute-force vector index using cosine
// similarity. It is the default backend: the whole corpus fits comfortably
// in memory and persistence is a single JSON blob.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"archive-rag/internal/domain"
	"archive-rag/internal/vectorindex"
)

// Store keeps chunks and vectors in parallel slices, in insertion order.
type Store struct {
	mu      sync.RWMutex
	chunks  []domain.Chunk
	vectors [][]float32
}

// New creates an empty in-memory index.
func New() *Store { return &Store{} }

// Reset drops all stored pairs.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.vectors = nil
	return nil
}

// Insert appends a (chunk, vector) pair.
func (s *Store) Insert(_ context.Context, chunk domain.Chunk, vector []float32) error {
	if len(vector) == 0 {
		return errors.New("empty vector")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vectors) > 0 && len(vector) != len(s.vectors[0]) {
		return errors.New("vector dimension mismatch")
	}
	s.chunks = append(s.chunks, chunk)
	s.vectors = append(s.vectors, vector)
	return nil
}

// Search returns the topK most similar chunks by descending cosine
// similarity. Equal scores keep insertion order (stable sort).
func (s *Store) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}

	scores := make([]float32, len(s.vectors))
	for i := range s.vectors {
		scores[i] = cosine(s.vectors[i], vector)
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// persisted is the on-disk shape of the index.
type persisted struct {
	Chunks  []domain.Chunk `json:"chunks"`
	Vectors [][]float32    `json:"vectors"`
}

// Save writes the index as one JSON blob, temp-file-then-rename so a crash
// mid-write never corrupts an existing index.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	blob := persisted{Chunks: s.chunks, Vectors: s.vectors}
	data, err := json.Marshal(blob)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the index contents with the persisted blob at path.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return vectorindex.ErrIndexMissing
	}
	if err != nil {
		return err
	}
	var blob persisted
	if err := json.Unmarshal(data, &blob); err != nil {
		return err
	}
	if len(blob.Chunks) != len(blob.Vectors) {
		return errors.New("index blob is inconsistent")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = blob.Chunks
	s.vectors = blob.Vectors
	return nil
}

// Count returns the number of stored pairs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
