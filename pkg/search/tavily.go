package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/logger"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	maxSnippetLen      = 500
	maxImagesPerSearch = 3
	searchRetries      = 2
)

// TavilyClient implements Provider against the Tavily search API (or any
// API speaking the same shape). Identical queries within a session are
// collapsed via singleflight and served from an in-memory cache; requests
// are rate limited to stay under the API's burst ceiling.
type TavilyClient struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter

	enrich *PageEnricher

	cache   map[string]cachedSearch
	cacheMu sync.RWMutex
	group   singleflight.Group
}

type cachedSearch struct {
	results []Result
	images  []string
}

// NewTavilyClientParams configures a TavilyClient. Endpoint defaults to the
// public Tavily API; MaxResults defaults to 5.
type NewTavilyClientParams struct {
	APIKey     string
	Endpoint   string
	MaxResults int

	// EnrichPages fetches the top hit of each search and replaces its
	// snippet with readable page text.
	EnrichPages bool
}

// NewTavilyClient creates a search client with the provided parameters.
func NewTavilyClient(params NewTavilyClientParams) *TavilyClient {
	endpoint := params.Endpoint
	if endpoint == "" {
		endpoint = "https://api.tavily.com/search"
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var enrich *PageEnricher
	if params.EnrichPages {
		enrich = NewPageEnricher()
	}

	return &TavilyClient{
		apiKey:     params.APIKey,
		endpoint:   endpoint,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		enrich:     enrich,
		cache:      make(map[string]cachedSearch),
	}
}

type tavilySearchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeImages bool   `json:"include_images"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
	Images []string `json:"images"`
}

// Search runs one query and returns structured results plus image URLs.
// Snippets are truncated; at most three image URLs are returned per query.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]Result, []string, error) {
	c.cacheMu.RLock()
	if cached, ok := c.cache[query]; ok {
		c.cacheMu.RUnlock()
		return cached.results, cached.images, nil
	}
	c.cacheMu.RUnlock()

	value, err, _ := c.group.Do(query, func() (any, error) {
		c.cacheMu.RLock()
		if cached, ok := c.cache[query]; ok {
			c.cacheMu.RUnlock()
			return cached, nil
		}
		c.cacheMu.RUnlock()

		fetched, err := util.RetryWithContext(ctx, searchRetries, func(ctx context.Context) (cachedSearch, error) {
			return c.fetch(ctx, query)
		})
		if err != nil {
			return cachedSearch{}, err
		}

		c.cacheMu.Lock()
		c.cache[query] = fetched
		c.cacheMu.Unlock()

		return fetched, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search %q: %w", query, err)
	}

	result := value.(cachedSearch)
	return result.results, result.images, nil
}

func (c *TavilyClient) fetch(ctx context.Context, query string) (cachedSearch, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return cachedSearch{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(tavilySearchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    c.maxResults,
		IncludeImages: true,
	})
	if err != nil {
		return cachedSearch{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return cachedSearch{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return cachedSearch{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return cachedSearch{}, fmt.Errorf("unexpected status %d: %s", res.StatusCode, raw)
	}

	var parsed tavilySearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return cachedSearch{}, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Content, maxSnippetLen),
		})
	}

	images := parsed.Images
	if len(images) > maxImagesPerSearch {
		images = images[:maxImagesPerSearch]
	}

	if c.enrich != nil && len(results) > 0 {
		if text, err := c.enrich.ReadableText(ctx, results[0].URL); err == nil && text != "" {
			results[0].Snippet = truncate(text, maxSnippetLen*2)
		} else if err != nil {
			logger.Debug("[Search] Page enrichment failed", "url", results[0].URL, "err", err)
		}
	}

	return cachedSearch{results: results, images: images}, nil
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}
