// Package store persists fetched documents as append-only JSON records.
// Records are laid out under date directories for browsability, but a
// document's identity is the hash of its source URI, not its path.
package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"archive-rag/internal/domain"
)

// record is the on-disk shape of a document.
type record struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Date      string    `json:"date"`
	FetchedAt time.Time `json:"fetchedAt"`
	Text      string    `json:"text"`
}

// ContentStore writes and reads document records under a root directory.
type ContentStore struct {
	root string
	log  *slog.Logger
}

// New creates a content store rooted at dir.
func New(dir string, log *slog.Logger) *ContentStore {
	if log == nil {
		log = slog.Default()
	}
	return &ContentStore{root: dir, log: log}
}

// Save writes doc as <root>/<date>/<sha256(sourceURI)>.json and returns the
// path. Saving the same URI again overwrites the record in place, which is
// a no-op for identical content.
func (s *ContentStore) Save(doc domain.Document) (string, error) {
	day := doc.FetchedAt.UTC().Format("2006-01-02")
	dir := filepath.Join(s.root, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, domain.ContentAddress(doc.SourceURI)+".json")

	rec := record{
		URL:       doc.SourceURI,
		Title:     doc.Title,
		Author:    doc.Author,
		Date:      doc.PublishedAt,
		FetchedAt: doc.FetchedAt.UTC(),
		Text:      doc.Body,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write document %s: %w", path, err)
	}
	return path, nil
}

// LoadAll walks the store and returns every readable document, sorted by
// path for a stable indexing order. Unreadable records are skipped with a
// warning; only a missing root is an error for the caller to interpret.
func (s *ContentStore) LoadAll() ([]domain.Document, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("content store root %s: %w", s.root, err)
	}

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	docs := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable record", "path", path, "err", err)
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.Warn("skipping malformed record", "path", path, "err", err)
			continue
		}
		docs = append(docs, domain.Document{
			SourceURI:   rec.URL,
			Title:       rec.Title,
			Author:      rec.Author,
			PublishedAt: rec.Date,
			FetchedAt:   rec.FetchedAt,
			Body:        rec.Text,
		})
	}
	return docs, nil
}
