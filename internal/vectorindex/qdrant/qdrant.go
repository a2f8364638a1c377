// Package qdrant is a minimal REST client backing the vector index with a
// Qdrant server. Durability lives server-side: Save is a no-op and Load
// only verifies that the collection exists.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"archive-rag/internal/domain"
	"archive-rag/internal/vectorindex"
)

// Store assumes cosine distance and creates the collection on first insert.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu    sync.Mutex
	ready bool
	count int
}

// Config contains connection details for a Qdrant server.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates a Qdrant-backed index.
func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Reset drops the collection so a rebuild starts from scratch.
func (s *Store) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	s.mu.Lock()
	s.ready = false
	s.count = 0
	s.mu.Unlock()
	return nil
}

// Insert upserts a single point. The collection is created lazily from the
// first vector's dimensionality.
func (s *Store) Insert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	if err := s.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":     pointID(chunk),
			"vector": vector,
			"payload": map[string]any{
				"parent_uri": chunk.ParentURI,
				"seq":        chunk.Index,
				"text":       chunk.Text,
				"title":      chunk.Title,
				"author":     chunk.Author,
				"published":  chunk.PublishedAt,
			},
		}},
	}
	err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

// Search queries the collection for the topK nearest points.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["parent_uri"].(string); ok {
			chunk.ParentURI = v
		}
		if v, ok := r.Payload["seq"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["title"].(string); ok {
			chunk.Title = v
		}
		if v, ok := r.Payload["author"].(string); ok {
			chunk.Author = v
		}
		if v, ok := r.Payload["published"].(string); ok {
			chunk.PublishedAt = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

// Save is a no-op; every upsert was written with wait=true.
func (s *Store) Save(string) error { return nil }

// Load verifies that the collection exists on the server.
func (s *Store) Load(string) error {
	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return vectorindex.ErrIndexMissing
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant collection check failed: %s", resp.Status)
	}
	var out struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil {
		s.mu.Lock()
		s.count = out.Result.PointsCount
		s.ready = true
		s.mu.Unlock()
	}
	return nil
}

// Count returns the number of points known to this store.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return nil
	}
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return err
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// pointID derives a stable numeric point id from the chunk identity, since
// Qdrant only accepts integers or UUIDs.
func pointID(chunk domain.Chunk) uint64 {
	id, _ := strconv.ParseUint(domain.ContentAddress(chunk.ParentURI)[:15], 16, 64)
	return id<<16 | uint64(chunk.Index&0xffff)
}

func (s *Store) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
