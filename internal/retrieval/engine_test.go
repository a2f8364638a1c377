package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-rag/internal/domain"
	"archive-rag/internal/vectorindex/memory"
)

// axisEmbedder maps known texts to fixed vectors so tests control
// similarity exactly.
type axisEmbedder struct {
	vectors map[string][]float32
}

func (e *axisEmbedder) Name() string   { return "axis" }
func (e *axisEmbedder) Dimension() int { return 3 }

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func seededEngine(t *testing.T, cfg Config) (*Engine, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	emb := &axisEmbedder{vectors: map[string][]float32{
		"lighthouse keepers": {1, 0, 0},
	}}
	idx := memory.New()

	insert := func(seq int, text string, vec []float32) {
		require.NoError(t, idx.Insert(ctx, domain.Chunk{
			ParentURI: "https://example.org/p/post",
			Index:     seq,
			Text:      text,
		}, vec))
	}
	// descending similarity to the "lighthouse keepers" query vector
	insert(0, "the lighthouse keepers kept a nightly log", []float32{1, 0, 0})
	insert(1, "keepers of the lighthouse", []float32{0.9, 0.4, 0})
	insert(2, "a recipe for sourdough bread", []float32{0.5, 0.8, 0})
	insert(3, "annual harbor traffic report", []float32{0, 1, 0})

	return New(emb, idx, NewLexicalScorer(), cfg), idx
}

func TestContext_BoundsToFinalK(t *testing.T) {
	e, _ := seededEngine(t, Config{TopK: 10, FinalK: 2})

	results, err := e.Context(context.Background(), "lighthouse keepers")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestContext_RerankPromotesLexicalMatch(t *testing.T) {
	e, _ := seededEngine(t, Config{TopK: 10, FinalK: 4, Rerank: true})

	results, err := e.Context(context.Background(), "lighthouse keepers")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// both lighthouse chunks outrank the unrelated ones after rescoring
	assert.Contains(t, results[0].Chunk.Text, "lighthouse")
	assert.Contains(t, results[1].Chunk.Text, "lighthouse")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestContext_NoRerankKeepsSimilarityOrder(t *testing.T) {
	e, _ := seededEngine(t, Config{TopK: 10, FinalK: 4, Rerank: false})

	results, err := e.Context(context.Background(), "lighthouse keepers")
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, 1, results[1].Chunk.Index)
	assert.Equal(t, 2, results[2].Chunk.Index)
	assert.Equal(t, 3, results[3].Chunk.Index)
}

func TestContext_MinScoreDropsWeakMatches(t *testing.T) {
	e, _ := seededEngine(t, Config{TopK: 10, FinalK: 10, MinScore: 0.6})

	results, err := e.Context(context.Background(), "lighthouse keepers")
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0.6))
	}
	assert.Less(t, len(results), 4)
}

func TestContext_EmptyIndex(t *testing.T) {
	emb := &axisEmbedder{}
	e := New(emb, memory.New(), nil, Config{})

	results, err := e.Context(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestContext_DeduplicatesRepeatedChunks(t *testing.T) {
	ctx := context.Background()
	emb := &axisEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	idx := memory.New()
	ch := domain.Chunk{ParentURI: "https://example.org/p/x", Index: 0, Text: "same chunk"}
	require.NoError(t, idx.Insert(ctx, ch, []float32{1, 0, 0}))
	require.NoError(t, idx.Insert(ctx, ch, []float32{1, 0, 0}))

	e := New(emb, idx, nil, Config{TopK: 10, FinalK: 10})
	results, err := e.Context(ctx, "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLexicalScorer(t *testing.T) {
	s := NewLexicalScorer()

	assert.InDelta(t, 1.0, float64(s.Score("hello world", "world hello")), 1e-6)
	assert.Zero(t, s.Score("hello", "goodbye"))
	assert.Zero(t, s.Score("", "anything"))

	// partial overlap: {keepers} over sqrt(2*3)
	got := s.Score("lighthouse's keepers", "the keepers slept")
	assert.InDelta(t, 0.40824829, float64(got), 1e-6)
}
