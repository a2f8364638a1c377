package completion

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"archive-rag/internal/domain"
)

// TokenCounter counts prompt tokens for budget enforcement.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the cl100k_base encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoding: %w", err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// BuildContextBlock renders the retrieved chunks as a citation-annotated
// context block, dropping trailing chunks once the token budget is spent.
// The chunks are already ordered by relevance, so the tail is the cheapest
// to lose.
func BuildContextBlock(chunks []domain.SearchResult, counter TokenCounter, maxTokens int) string {
	if len(chunks) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("Context excerpts from the archive:\n")
	used := counter.Count(buf.String())

	for i, r := range chunks {
		entry := fmt.Sprintf("%d. %s — %s (%s)\n<<<\n%s\n>>>\n\n",
			i+1, r.Chunk.Title, r.Chunk.Author, r.Chunk.ParentURI, r.Chunk.Text)
		cost := counter.Count(entry)
		if used+cost > maxTokens {
			break
		}
		buf.WriteString(entry)
		used += cost
	}
	return buf.String()
}
