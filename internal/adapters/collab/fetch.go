// Package collab holds the default implementations of the collaborator
// ports: live page fetching, DNS, deliverability probing, rendering, and
// the dev-mode transport and notifier.
package collab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "prospector/1.0 (+https://prospector.example)"

// HTTPFetcher retrieves pages for the contact scraper.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	// Contact pages are small; cap the read anyway.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
