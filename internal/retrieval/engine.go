// Package retrieval serves queries against the vector index: embed, search
// a wide candidate set, optionally rerank and bound the final context.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"archive-rag/internal/domain"
	"archive-rag/internal/embedding"
	"archive-rag/internal/vectorindex"
)

// Config fixes the retrieval policy at construction time.
type Config struct {
	TopK     int
	FinalK   int
	Rerank   bool
	MinScore float32
}

// Engine assembles the retrieval context for a query. It is stateless and
// safe for concurrent use once the underlying index has been loaded.
type Engine struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	scorer   Scorer
	cfg      Config
}

// New creates a retrieval engine. A nil scorer falls back to the lexical
// overlap scorer.
func New(emb embedding.Embedder, idx vectorindex.Index, scorer Scorer, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.FinalK <= 0 {
		cfg.FinalK = 3
	}
	if cfg.TopK < cfg.FinalK {
		cfg.TopK = cfg.FinalK
	}
	if scorer == nil {
		scorer = NewLexicalScorer()
	}
	return &Engine{embedder: emb, index: idx, scorer: scorer, cfg: cfg}
}

// Context returns at most FinalK chunks for the query, ordered by
// descending relevance. An empty result is not an error: the caller is
// responsible for the "I don't know" fallback rather than this engine
// inventing content.
func (e *Engine) Context(ctx context.Context, query string) ([]domain.SearchResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := e.index.Search(ctx, vec, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := e.filter(candidates)
	if e.cfg.Rerank {
		e.rerank(query, results)
	}
	if len(results) > e.cfg.FinalK {
		results = results[:e.cfg.FinalK]
	}
	return results, nil
}

// filter drops candidates below the relevance floor and duplicate
// (parentURI, sequence) pairs, preserving order.
func (e *Engine) filter(candidates []domain.SearchResult) []domain.SearchResult {
	type key struct {
		uri string
		seq int
	}
	seen := make(map[key]struct{}, len(candidates))
	results := make([]domain.SearchResult, 0, len(candidates))
	for _, r := range candidates {
		if r.Score < e.cfg.MinScore {
			continue
		}
		k := key{r.Chunk.ParentURI, r.Chunk.Index}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		results = append(results, r)
	}
	return results
}

// rerank rescores every (query, chunk) pair and reorders descending.
// The sort is stable, so ties keep their similarity order.
func (e *Engine) rerank(query string, results []domain.SearchResult) {
	for i := range results {
		results[i].Score = e.scorer.Score(query, results[i].Chunk.Text)
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
}
