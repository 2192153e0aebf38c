package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher downloads and parses one source. Errors are scoped to that source.
type Fetcher struct {
	httpClient     *http.Client
	parser         *Parser
	userAgent      string
	defaultTimeout time.Duration
	now            func() time.Time
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string, defaultTimeout time.Duration, now func() time.Time) *Fetcher {
	return &Fetcher{
		httpClient:     httpClient,
		parser:         parser,
		userAgent:      userAgent,
		defaultTimeout: defaultTimeout,
		now:            now,
	}
}

func (f *Fetcher) Run(ctx context.Context, src Source) ([]Entry, error) {
	timeout := f.defaultTimeout
	if src.Settings.Timeout > 0 {
		timeout = time.Duration(src.Settings.Timeout) * time.Second
	}

	data, err := fetchBody(ctx, f.httpClient, src.URL, f.userAgent, timeout, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	entries, err := f.parser.Run(data, src.Name, f.now())
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// PageFetcher downloads HTML pages for media discovery and readability extraction.
type PageFetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewPageFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *PageFetcher {
	return &PageFetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (p *PageFetcher) Run(ctx context.Context, url string) ([]byte, error) {
	return fetchBody(ctx, p.httpClient, url, p.userAgent, p.timeout, "text/html")
}

const maxBodySize = 10 << 20

func fetchBody(ctx context.Context, client *http.Client, url, userAgent string, timeout time.Duration, wantType string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if wantType != "" {
		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(strings.ToLower(contentType), wantType) {
			return nil, fmt.Errorf("unexpected content type: %s", contentType)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
