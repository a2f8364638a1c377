// Package crawler walks a paginated archive listing, fetches unseen
// articles and persists them through the content store.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"archive-rag/internal/frontier"
	"archive-rag/internal/store"
)

// Config holds the crawl policy parameters.
type Config struct {
	BaseURL       string
	UserAgent     string
	LinkSubstring string
	Concurrency   int
	FetchDelay    time.Duration
	Timeout       time.Duration
}

// Stats summarizes a single crawl run.
type Stats struct {
	Pages   int
	Fetched int
	Skipped int
	Failed  int
}

// Crawler discovers and fetches archive articles incrementally. Listing
// pages are walked sequentially; article fetches within a page run on a
// bounded worker pool paced by a shared rate limiter.
type Crawler struct {
	cfg      Config
	base     *url.URL
	client   *http.Client
	frontier *frontier.Tracker
	store    *store.ContentStore
	limiter  *rate.Limiter
	log      *slog.Logger

	now func() time.Time
}

// New creates a crawler over the given frontier and content store.
func New(cfg Config, tracker *frontier.Tracker, contentStore *store.ContentStore, log *slog.Logger) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	if cfg.FetchDelay > 0 {
		limit = rate.Every(cfg.FetchDelay)
	}
	return &Crawler{
		cfg:      cfg,
		base:     base,
		client:   &http.Client{Timeout: cfg.Timeout},
		frontier: tracker,
		store:    contentStore,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		now:      time.Now,
	}, nil
}

// Run walks archive pages starting at 1 until the endpoint returns a
// non-success status or a page yields no links. Both are normal end-of-
// archive signals, not errors. The frontier is persisted exactly once,
// at termination.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for page := 1; ctx.Err() == nil; page++ {
		links, err := c.fetchListing(ctx, page)
		if err != nil {
			c.log.Info("archive exhausted", "page", page, "reason", err)
			break
		}
		if len(links) == 0 {
			c.log.Info("no links on page, stopping", "page", page)
			break
		}
		stats.Pages++

		var unseen []string
		for _, link := range links {
			if c.frontier.Has(link) {
				stats.Skipped++
				continue
			}
			unseen = append(unseen, link)
		}
		fetched, failed := c.fetchArticles(ctx, unseen)
		stats.Fetched += fetched
		stats.Failed += failed
	}

	if err := c.frontier.Persist(); err != nil {
		return stats, fmt.Errorf("persist frontier: %w", err)
	}
	c.log.Info("crawl finished",
		"pages", stats.Pages, "fetched", stats.Fetched,
		"skipped", stats.Skipped, "failed", stats.Failed,
		"seen", c.frontier.Len())
	return stats, nil
}

// fetchListing retrieves one archive page and extracts its article links.
// Any failure here means the crawl should stop.
func (c *Crawler) fetchListing(ctx context.Context, page int) ([]string, error) {
	listing := *c.base
	listing.Path = "/archive"
	listing.RawQuery = fmt.Sprintf("page=%d", page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listing.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}
	return extractLinks(resp.Body, c.base, c.cfg.LinkSubstring)
}

// fetchArticles fetches the given links on a bounded worker pool. A failed
// article is logged and skipped without being marked seen, so a future
// crawl retries it.
func (c *Crawler) fetchArticles(ctx context.Context, links []string) (fetched, failed int) {
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, link := range links {
		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			err := c.fetchOne(ctx, link)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Warn("article skipped", "uri", link, "err", err)
				failed++
				return
			}
			fetched++
		}(link)
	}
	wg.Wait()
	return fetched, failed
}

// fetchOne downloads and parses a single article, persists it and marks
// the URI seen. Persist-then-mark order keeps the frontier and the store
// from diverging: a crash in between only costs a safe re-fetch.
func (c *Crawler) fetchOne(ctx context.Context, link string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("article returned %s", resp.Status)
	}

	doc, err := parseArticle(resp.Body, link, c.now())
	if err != nil {
		return err
	}
	if _, err := c.store.Save(doc); err != nil {
		return err
	}
	c.frontier.MarkSeen(link)
	c.log.Info("saved", "title", doc.Title, "uri", link)
	return nil
}
