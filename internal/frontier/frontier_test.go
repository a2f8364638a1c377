package frontier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrEmpty_MissingFile(t *testing.T) {
	tr := LoadOrEmpty(filepath.Join(t.TempDir(), "seen.json"), nil)
	assert.Equal(t, 0, tr.Len())
}

func TestLoadOrEmpty_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tr := LoadOrEmpty(path, nil)
	assert.Equal(t, 0, tr.Len())
}

func TestMarkSeenAndHas(t *testing.T) {
	tr := LoadOrEmpty(filepath.Join(t.TempDir(), "seen.json"), nil)

	assert.False(t, tr.Has("https://example.org/p/a"))
	tr.MarkSeen("https://example.org/p/a")
	assert.True(t, tr.Has("https://example.org/p/a"))
	assert.Equal(t, 1, tr.Len())
}

func TestPersist_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	tr := LoadOrEmpty(path, nil)
	tr.MarkSeen("https://example.org/p/a")
	tr.MarkSeen("https://example.org/p/b")
	require.NoError(t, tr.Persist())

	reloaded := LoadOrEmpty(path, nil)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Has("https://example.org/p/a"))
	assert.True(t, reloaded.Has("https://example.org/p/b"))
}

func TestPersist_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seen.json")

	tr := LoadOrEmpty(path, nil)
	tr.MarkSeen("https://example.org/p/a")
	require.NoError(t, tr.Persist())

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPersist_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "seen.json")

	tr := LoadOrEmpty(path, nil)
	tr.MarkSeen("https://example.org/p/a")
	require.NoError(t, tr.Persist())

	assert.True(t, LoadOrEmpty(path, nil).Has("https://example.org/p/a"))
}
