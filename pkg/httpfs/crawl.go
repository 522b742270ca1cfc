// Package httpfs implements the HTTP-FS crawl mode: an alternative to
// manifest-driven updates that recursively mirrors an Nginx-style directory
// listing onto the destination root, with no manifest, MD5, or signature.
package httpfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// Lister fetches a directory listing page's raw body. Kept separate from
// fetch.Transport because a listing is read whole (it's small HTML), while
// file bodies are streamed.
type Lister interface {
	List(ctx context.Context, url string) (body io.ReadCloser, statusCode int, err error)
}

// HTTPLister is the default Lister, backed by net/http.Client.
type HTTPLister struct {
	Client *http.Client
}

func (l *HTTPLister) List(ctx context.Context, url string) (io.ReadCloser, int, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", url, err)
	}
	return resp.Body, resp.StatusCode, nil
}

// FileVisitor is invoked once per discovered file, with its full remote URL
// and its path relative to the crawl root (POSIX-separated).
type FileVisitor func(ctx context.Context, remoteURL, relPath string) error

// Crawler walks an Nginx-style directory listing tree.
type Crawler struct {
	Lister  Lister
	Visit   FileVisitor
	visited map[string]struct{}
}

// NewCrawler builds a Crawler. visit is called once per file in listing
// order, depth-first, skipping directories already seen in this walk.
func NewCrawler(lister Lister, visit FileVisitor) *Crawler {
	return &Crawler{Lister: lister, Visit: visit, visited: make(map[string]struct{})}
}

// Crawl recursively lists baseURL and visits every file under it. basePath
// is the relative-path prefix to report to Visit for files found directly
// under baseURL; pass "" at the top of the walk.
func (c *Crawler) Crawl(ctx context.Context, baseURL, basePath string) error {
	if _, seen := c.visited[baseURL]; seen {
		return nil
	}
	c.visited[baseURL] = struct{}{}

	entries, err := c.list(ctx, baseURL)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if shouldSkip(entry) {
			continue
		}

		fullURL := strings.TrimSuffix(baseURL, "/") + "/" + entry
		relPath := basePath + entry

		if strings.HasSuffix(entry, "/") {
			if err := c.Crawl(ctx, fullURL, basePath+entry); err != nil {
				return err
			}
			continue
		}
		if strings.Contains(entry, "/") {
			// A link with interior slashes but no trailing slash is not a
			// same-directory file or subdirectory; ignore it defensively.
			continue
		}

		if err := c.Visit(ctx, fullURL, relPath); err != nil {
			return err
		}
	}

	return nil
}

// shouldSkip mirrors the three link-classification rules: parent-directory
// links, query strings, and fragments are never followed.
func shouldSkip(entry string) bool {
	return strings.HasPrefix(entry, "../") || strings.Contains(entry, "?") || strings.Contains(entry, "#")
}

func (c *Crawler) list(ctx context.Context, url string) ([]string, error) {
	body, status, err := c.Lister.List(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if status != http.StatusOK {
		return nil, fmt.Errorf("list %s: unexpected status %d", url, status)
	}

	return parseHrefs(body)
}

// parseHrefs extracts every href attribute from <a> tags in an HTML
// directory listing, in document order.
func parseHrefs(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse directory listing: %w", err)
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return hrefs, nil
}
