package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// MediaSource opens a media URL for streaming. The caller must close the reader.
type MediaSource interface {
	Open(ctx context.Context, mediaURL string, timeout time.Duration) (io.ReadCloser, error)
}

var _ MediaSource = (*HTTPMediaSource)(nil)

type HTTPMediaSource struct {
	httpClient *http.Client
	userAgent  string
}

func NewHTTPMediaSource(httpClient *http.Client, userAgent string) *HTTPMediaSource {
	return &HTTPMediaSource{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Open returns the response body without buffering it. The timeout covers the whole
// transfer, so it ends when the reader is closed or the deadline passes.
func (s *HTTPMediaSource) Open(ctx context.Context, mediaURL string, timeout time.Duration) (io.ReadCloser, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", mediaURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// fileName picks an upload name from the URL path.
func fileName(mediaURL, fallback string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return fallback
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
