package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-rag/internal/domain"
	"archive-rag/internal/vectorindex"
)

func chunk(uri string, seq int, text string) domain.Chunk {
	return domain.Chunk{ParentURI: uri, Index: seq, Text: text}
}

func TestSearch_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Insert(ctx, chunk("u", 0, "orthogonal"), []float32{0, 1}))
	require.NoError(t, s.Insert(ctx, chunk("u", 1, "close"), []float32{0.9, 0.1}))
	require.NoError(t, s.Insert(ctx, chunk("u", 2, "exact"), []float32{1, 0}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].Chunk.Text)
	assert.Equal(t, "close", results[1].Chunk.Text)
	assert.Equal(t, "orthogonal", results[2].Chunk.Text)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.InDelta(t, 0.0, float64(results[2].Score), 1e-6)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	// identical vectors score identically against any query
	require.NoError(t, s.Insert(ctx, chunk("u", 0, "first"), []float32{1, 1}))
	require.NoError(t, s.Insert(ctx, chunk("u", 1, "second"), []float32{1, 1}))
	require.NoError(t, s.Insert(ctx, chunk("u", 2, "third"), []float32{1, 1}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.Equal(t, "second", results[1].Chunk.Text)
	assert.Equal(t, "third", results[2].Chunk.Text)
}

func TestSearch_ClampsTopK(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Insert(ctx, chunk("u", 0, "only"), []float32{1, 0}))

	results, err := s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestInsert_RejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Insert(ctx, chunk("u", 0, "a"), []float32{1, 0}))
	assert.Error(t, s.Insert(ctx, chunk("u", 1, "b"), []float32{1, 0, 0}))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.json")

	s := New()
	require.NoError(t, s.Insert(ctx, chunk("u", 0, "alpha"), []float32{1, 0}))
	require.NoError(t, s.Insert(ctx, chunk("u", 1, "beta"), []float32{0, 1}))
	require.NoError(t, s.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Count())

	want, err := s.Search(ctx, []float32{0.7, 0.3}, 2)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, []float32{0.7, 0.3}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_MissingFile(t *testing.T) {
	s := New()
	err := s.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, vectorindex.ErrIndexMissing)
}

func TestReset_DropsEverything(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Insert(ctx, chunk("u", 0, "a"), []float32{1, 0}))
	require.NoError(t, s.Reset(ctx))
	assert.Zero(t, s.Count())

	results, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
