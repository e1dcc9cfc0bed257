package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
)

// PageEnricher fetches a search hit's page and extracts its readable text,
// giving the extraction model more to work with than the API snippet.
type PageEnricher struct {
	client *http.Client
}

// NewPageEnricher creates an enricher with a bounded request timeout.
func NewPageEnricher() *PageEnricher {
	return &PageEnricher{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// ReadableText fetches pageURL and returns the main article text for HTML
// pages. Non-HTML content yields an empty string.
func (e *PageEnricher) ReadableText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		return "", nil
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("render article text: %w", err)
	}

	return builder.String(), nil
}
