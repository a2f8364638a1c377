// Package chunker splits document bodies into overlapping fixed-size
// segments that serve as the unit of embedding and retrieval.
package chunker

import (
	"archive-rag/internal/domain"
)

// TextChunker windows a body's runes into chunks of at most size runes,
// with consecutive chunks sharing overlap runes so that concepts split
// across a boundary stay retrievable from at least one chunk.
type TextChunker struct {
	size    int
	overlap int
}

// New creates a text chunker. Non-positive sizes fall back to sane
// defaults, and an overlap that would prevent forward progress is clamped
// to a quarter of the chunk size.
func New(size, overlap int) *TextChunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &TextChunker{size: size, overlap: overlap}
}

// Split returns the ordered chunks of doc. It is deterministic: the same
// document always yields an identical sequence. A body shorter than the
// chunk size yields exactly one chunk; an empty body yields none.
func (c *TextChunker) Split(doc domain.Document) []domain.Chunk {
	runes := []rune(doc.Body)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			ParentURI:   doc.SourceURI,
			Index:       idx,
			Text:        string(runes[start:end]),
			Title:       doc.Title,
			Author:      doc.Author,
			PublishedAt: doc.PublishedAt,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
