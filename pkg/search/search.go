package search

import "context"

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider is the search capability injected into the session loop. A
// provider may return an empty result set; the engine treats that as a
// degraded, non-fatal round. Retry and backoff are the provider's concern.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, []string, error)
}
