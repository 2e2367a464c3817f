// Package fetcher downloads release feeds and turns their items into issues.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"kmanga/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses release feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads and parses an RSS, Atom or JSON feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "kmanga/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

var (
	chapterRe = regexp.MustCompile(`(?i)(?:\bchapter|\bch\.?|#)\s*(\d+(?:\.\d+)?)`)
	volumeRe  = regexp.MustCompile(`(?i)\bvol(?:ume)?\.?\s*(\d+(?:\.\d+)?)`)
)

// ReleaseNumber extracts the chapter number from an item title, falling back
// to the volume number. It returns "" when the title carries neither.
func ReleaseNumber(title string) string {
	if m := chapterRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	if m := volumeRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// Issues converts feed items into issues of the given manga. Feeds list the
// newest release first, so items are returned oldest first. Untitled items
// are skipped.
func Issues(mangaID int64, feed *gofeed.Feed) []model.Issue {
	var issues []model.Issue
	for i := len(feed.Items) - 1; i >= 0; i-- {
		item := feed.Items[i]
		name := strings.TrimSpace(item.Title)
		if name == "" {
			continue
		}
		issues = append(issues, model.Issue{
			MangaID: mangaID,
			Name:    name,
			Number:  ReleaseNumber(name),
			URL:     item.Link,
			GUID:    ItemGUID(item),
		})
	}
	return issues
}
