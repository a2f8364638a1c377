package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Document is an immutable record of a single fetched article.
// Identity is the content address of SourceURI, not of the body.
type Document struct {
	SourceURI   string
	Title       string
	Author      string
	PublishedAt string
	FetchedAt   time.Time
	Body        string
}

// Chunk is a bounded segment of a document body used for indexing and
// retrieval. Index is its 0-based position within the parent document.
type Chunk struct {
	ParentURI   string
	Index       int
	Text        string
	Title       string
	Author      string
	PublishedAt string
}

// ID returns the deterministic chunk identifier within the corpus.
func (c Chunk) ID() string {
	return ContentAddress(c.ParentURI) + ":" + strconv.Itoa(c.Index)
}

// SearchResult is a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a conversation, owned by the session layer and
// passed by value into the retrieval and completion calls.
type Turn struct {
	Role Role
	Text string
}

// ContentAddress derives the stable storage key for a source URI.
func ContentAddress(sourceURI string) string {
	sum := sha256.Sum256([]byte(sourceURI))
	return hex.EncodeToString(sum[:])
}
