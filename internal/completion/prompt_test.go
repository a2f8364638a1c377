package completion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-rag/internal/domain"
)

// wordCounter counts whitespace-separated words, giving tests a cheap and
// predictable token model.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func result(title, author, uri, text string) domain.SearchResult {
	return domain.SearchResult{Chunk: domain.Chunk{
		ParentURI: uri,
		Title:     title,
		Author:    author,
		Text:      text,
	}}
}

func TestBuildContextBlock_Empty(t *testing.T) {
	assert.Empty(t, BuildContextBlock(nil, wordCounter{}, 1000))
}

func TestBuildContextBlock_Citations(t *testing.T) {
	chunks := []domain.SearchResult{
		result("First Post", "Jane", "https://example.org/p/first", "alpha beta"),
		result("Second Post", "John", "https://example.org/p/second", "gamma delta"),
	}
	block := BuildContextBlock(chunks, wordCounter{}, 1000)

	assert.Contains(t, block, "1. First Post — Jane (https://example.org/p/first)")
	assert.Contains(t, block, "2. Second Post — John (https://example.org/p/second)")
	assert.Contains(t, block, "<<<\nalpha beta\n>>>")
	assert.Contains(t, block, "<<<\ngamma delta\n>>>")
}

func TestBuildContextBlock_DropsTailOverBudget(t *testing.T) {
	chunks := []domain.SearchResult{
		result("A", "Jane", "https://example.org/p/a", "one two three"),
		result("B", "Jane", "https://example.org/p/b", strings.Repeat("word ", 50)),
	}

	full := BuildContextBlock(chunks, wordCounter{}, 1000)
	require.Contains(t, full, "example.org/p/b")

	tight := BuildContextBlock(chunks, wordCounter{}, 20)
	assert.Contains(t, tight, "example.org/p/a")
	assert.NotContains(t, tight, "example.org/p/b")
}

func TestBuildContextBlock_BudgetTooSmallForAnyChunk(t *testing.T) {
	chunks := []domain.SearchResult{
		result("A", "Jane", "https://example.org/p/a", strings.Repeat("word ", 30)),
	}
	block := BuildContextBlock(chunks, wordCounter{}, 5)
	assert.NotContains(t, block, "example.org/p/a")
}
