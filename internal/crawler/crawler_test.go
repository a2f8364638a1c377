package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archive-rag/internal/frontier"
	"archive-rag/internal/store"
)

func listingHTML(paths ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func articleHTML(title string) string {
	return fmt.Sprintf(`<html><body>
		<h1>%s</h1>
		<a rel="author" href="#">Jane</a>
		<time datetime="2024-01-01T00:00:00Z">Jan 1</time>
		<p>Body of %s.</p>
	</body></html>`, title, title)
}

// fakeArchive serves paginated listings plus article pages and counts
// per-path hits.
type fakeArchive struct {
	mu       sync.Mutex
	hits     map[string]int
	listings map[string]string // page number -> listing HTML
	articles map[string]string // path -> article HTML
	broken   map[string]bool   // path -> respond 500
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		hits:     make(map[string]int),
		listings: make(map[string]string),
		articles: make(map[string]string),
		broken:   make(map[string]bool),
	}
}

func (f *fakeArchive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.mu.Unlock()

	if r.URL.Path == "/archive" {
		page, ok := f.listings[r.URL.Query().Get("page")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
		return
	}
	if f.broken[r.URL.Path] {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if body, ok := f.articles[r.URL.Path]; ok {
		fmt.Fprint(w, body)
		return
	}
	http.NotFound(w, r)
}

func (f *fakeArchive) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func newTestCrawler(t *testing.T, baseURL string) (*Crawler, *frontier.Tracker, *store.ContentStore, string) {
	t.Helper()
	dir := t.TempDir()
	seenPath := filepath.Join(dir, "seen.json")
	tr := frontier.LoadOrEmpty(seenPath, nil)
	contentRoot := filepath.Join(dir, "content")
	require.NoError(t, os.MkdirAll(contentRoot, 0o755))
	st := store.New(contentRoot, nil)

	c, err := New(Config{
		BaseURL:       baseURL,
		UserAgent:     "archive-rag-test",
		LinkSubstring: "/p/",
		Concurrency:   2,
	}, tr, st, nil)
	require.NoError(t, err)
	return c, tr, st, seenPath
}

func TestRun_SkipsSeenFetchesUnseen(t *testing.T) {
	arch := newFakeArchive()
	arch.listings["1"] = listingHTML("/p/a", "/p/b", "/p/c", "/p/c")
	arch.listings["2"] = listingHTML()
	arch.articles["/p/c"] = articleHTML("C")
	srv := httptest.NewServer(arch)
	defer srv.Close()

	c, tr, st, seenPath := newTestCrawler(t, srv.URL)
	tr.MarkSeen(srv.URL + "/p/a")
	tr.MarkSeen(srv.URL + "/p/b")

	stats, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Pages: 1, Fetched: 1, Skipped: 2}, stats)
	assert.Equal(t, 1, arch.hitCount("/p/c"))
	assert.Zero(t, arch.hitCount("/p/a"))
	assert.Zero(t, arch.hitCount("/p/b"))

	docs, err := st.LoadAll()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, srv.URL+"/p/c", docs[0].SourceURI)
	assert.Equal(t, "C", docs[0].Title)

	// frontier persisted with all three URIs
	reloaded := frontier.LoadOrEmpty(seenPath, nil)
	assert.Equal(t, 3, reloaded.Len())
	assert.True(t, reloaded.Has(srv.URL+"/p/c"))
}

func TestRun_StopsOnNonSuccessListing(t *testing.T) {
	arch := newFakeArchive() // no listings at all -> page 1 is a 404
	srv := httptest.NewServer(arch)
	defer srv.Close()

	c, _, _, seenPath := newTestCrawler(t, srv.URL)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	// termination still persists the frontier
	_, statErr := os.Stat(seenPath)
	assert.NoError(t, statErr)
}

func TestRun_StopsOnPageWithoutLinks(t *testing.T) {
	arch := newFakeArchive()
	arch.listings["1"] = listingHTML("/p/a")
	arch.listings["2"] = listingHTML()
	arch.listings["3"] = listingHTML("/p/never")
	arch.articles["/p/a"] = articleHTML("A")
	srv := httptest.NewServer(arch)
	defer srv.Close()

	c, _, _, _ := newTestCrawler(t, srv.URL)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, Fetched: 1}, stats)
	assert.Zero(t, arch.hitCount("/p/never"))
}

func TestRun_FailedArticleNotMarkedSeen(t *testing.T) {
	arch := newFakeArchive()
	arch.listings["1"] = listingHTML("/p/good", "/p/bad")
	arch.articles["/p/good"] = articleHTML("Good")
	arch.broken["/p/bad"] = true
	srv := httptest.NewServer(arch)
	defer srv.Close()

	c, tr, st, _ := newTestCrawler(t, srv.URL)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, Fetched: 1, Failed: 1}, stats)

	assert.True(t, tr.Has(srv.URL+"/p/good"))
	assert.False(t, tr.Has(srv.URL+"/p/bad"))

	docs, err := st.LoadAll()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestRun_EmptyBodyArticleNotStored(t *testing.T) {
	arch := newFakeArchive()
	arch.listings["1"] = listingHTML("/p/hollow")
	arch.articles["/p/hollow"] = `<html><body><h1>Hollow</h1></body></html>`
	srv := httptest.NewServer(arch)
	defer srv.Close()

	c, tr, st, _ := newTestCrawler(t, srv.URL)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, Failed: 1}, stats)
	assert.False(t, tr.Has(srv.URL+"/p/hollow"))

	docs, err := st.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, docs)
}
