package httpfs

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type fakeLister struct {
	pages map[string]string
}

func (f *fakeLister) List(ctx context.Context, url string) (io.ReadCloser, int, error) {
	body, ok := f.pages[url]
	if !ok {
		return io.NopCloser(strings.NewReader("")), http.StatusNotFound, nil
	}
	return io.NopCloser(strings.NewReader(body)), http.StatusOK, nil
}

func TestCrawlVisitsFilesAndRecursesIntoDirectories(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: map[string]string{
		"http://x/base": `<a href="../">../</a><a href="a.py">a.py</a><a href="assets/">assets/</a>`,
		"http://x/base/assets/": `<a href="logo.png">logo.png</a>`,
	}}

	var visited []string
	crawler := NewCrawler(lister, func(ctx context.Context, remoteURL, relPath string) error {
		visited = append(visited, relPath)
		return nil
	})

	if err := crawler.Crawl(context.Background(), "http://x/base", ""); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if len(visited) != 2 || visited[0] != "a.py" || visited[1] != "assets/logo.png" {
		t.Fatalf("visited = %v", visited)
	}
}

func TestCrawlSkipsQueryAndFragmentLinks(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{pages: map[string]string{
		"http://x/base": `<a href="a.py?download=1">x</a><a href="#top">top</a><a href="b.py">b.py</a>`,
	}}

	var visited []string
	crawler := NewCrawler(lister, func(ctx context.Context, remoteURL, relPath string) error {
		visited = append(visited, relPath)
		return nil
	})

	if err := crawler.Crawl(context.Background(), "http://x/base", ""); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(visited) != 1 || visited[0] != "b.py" {
		t.Fatalf("visited = %v", visited)
	}
}

func TestCrawlDoesNotRevisitSameDirectoryTwice(t *testing.T) {
	t.Parallel()

	calls := 0
	lister := &countingLister{fakeLister: fakeLister{pages: map[string]string{
		"http://x/base": `<a href="sub/">sub/</a><a href="sub/">sub/</a>`,
		"http://x/base/sub/": `<a href="a.py">a.py</a>`,
	}}, calls: &calls}

	var visited []string
	crawler := NewCrawler(lister, func(ctx context.Context, remoteURL, relPath string) error {
		visited = append(visited, relPath)
		return nil
	})

	if err := crawler.Crawl(context.Background(), "http://x/base", ""); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (base + sub listed once each)", calls)
	}
	if len(visited) != 1 || visited[0] != "sub/a.py" {
		t.Fatalf("visited = %v", visited)
	}
}

type countingLister struct {
	fakeLister
	calls *int
}

func (c *countingLister) List(ctx context.Context, url string) (io.ReadCloser, int, error) {
	*c.calls++
	return c.fakeLister.List(ctx, url)
}
