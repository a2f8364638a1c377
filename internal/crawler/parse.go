package crawler

import (
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"archive-rag/internal/domain"
)

// ErrEmptyBody marks an article page whose parse produced no text. The
// document is discarded and left unseen so a later crawl retries it.
var ErrEmptyBody = errors.New("article body is empty")

// extractLinks returns the absolute article links found on a listing page,
// in first-seen order with in-page duplicates removed.
func extractLinks(r io.Reader, base *url.URL, substring string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, substring) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}

// parseArticle extracts the document fields from an article page.
func parseArticle(r io.Reader, sourceURI string, fetchedAt time.Time) (domain.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return domain.Document{}, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	author := strings.TrimSpace(doc.Find("a[rel=author]").First().Text())
	published, _ := doc.Find("time").First().Attr("datetime")

	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	body := strings.Join(paragraphs, "\n\n")
	if body == "" {
		return domain.Document{}, ErrEmptyBody
	}

	return domain.Document{
		SourceURI:   sourceURI,
		Title:       title,
		Author:      author,
		PublishedAt: published,
		FetchedAt:   fetchedAt,
		Body:        body,
	}, nil
}
