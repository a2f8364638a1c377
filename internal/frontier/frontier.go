// Package frontier tracks which source URIs have already been fetched so
// that repeated crawls only pay for new content.
package frontier

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Tracker is a durable set of seen source URIs. Membership checks and
// insertions are O(1); the set is only iterated for serialization.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
	path string
	log  *slog.Logger
}

// LoadOrEmpty reads the persisted frontier at path. A missing or corrupt
// file is not fatal: re-fetching is always safe, so the tracker degrades
// to an empty set and the problem is only logged.
func LoadOrEmpty(path string, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{seen: make(map[string]struct{}), path: path, log: log}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t
	}
	if err != nil {
		log.Warn("frontier unreadable, starting empty", "path", path, "err", err)
		return t
	}
	var uris []string
	if err := json.Unmarshal(data, &uris); err != nil {
		log.Warn("frontier corrupt, starting empty", "path", path, "err", err)
		return t
	}
	for _, u := range uris {
		t.seen[u] = struct{}{}
	}
	return t
}

// Has reports whether uri has already been fetched and persisted.
func (t *Tracker) Has(uri string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[uri]
	return ok
}

// MarkSeen records uri as fetched. Safe for concurrent use.
func (t *Tracker) MarkSeen(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[uri] = struct{}{}
}

// Len returns the number of seen URIs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Persist writes the set to disk. The write goes to a temp file which is
// then renamed over the target, so a crash mid-write never leaves a state
// worse than the pre-write one.
func (t *Tracker) Persist() error {
	t.mu.Lock()
	uris := make([]string, 0, len(t.seen))
	for u := range t.seen {
		uris = append(uris, u)
	}
	t.mu.Unlock()
	sort.Strings(uris)

	data, err := json.MarshalIndent(uris, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}
