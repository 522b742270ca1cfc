// Package fetch implements the chunked HTTP downloader the OTA engine
// drives: bounded retries with exponential backoff, optional range-based
// resume via ".part" files, and in-stream MD5 verification. It consumes an
// abstract Transport so the engine never depends on net/http directly.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is the minimal byte-stream result a Transport returns.
type Response struct {
	Body       io.ReadCloser
	StatusCode int
}

// Transport issues a GET for url, optionally with a "Range: bytes=from-"
// header when from > 0.
type Transport interface {
	Fetch(ctx context.Context, url string, from int64) (*Response, error)
}

// HTTPTransport is the default Transport, backed by net/http.Client.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport builds a Transport with the given per-request timeout.
// A zero timeout disables the deadline, matching http_timeout_s=nil.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string, from int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	if from > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", from))
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	return &Response{Body: resp.Body, StatusCode: resp.StatusCode}, nil
}
