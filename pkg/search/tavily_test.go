package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newSearchServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilySearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Query == "" {
			t.Error("request missing query")
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestSearchSnippetTruncation(t *testing.T) {
	long := strings.Repeat("x", maxSnippetLen+200)
	body := fmt.Sprintf(`{"results":[
		{"title":"short","url":"https://a.example","content":"fits"},
		{"title":"long","url":"https://b.example","content":"%s"}
	],"images":[]}`, long)

	srv := newSearchServer(t, body)
	defer srv.Close()

	c := NewTavilyClient(NewTavilyClientParams{APIKey: "k", Endpoint: srv.URL})
	results, _, err := c.Search(context.Background(), "dolphins")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Snippet != "fits" {
		t.Errorf("short snippet changed: %q", results[0].Snippet)
	}
	if len(results[1].Snippet) != maxSnippetLen {
		t.Errorf("long snippet length = %d, want %d", len(results[1].Snippet), maxSnippetLen)
	}
}

func TestSearchImageCap(t *testing.T) {
	srv := newSearchServer(t, `{"results":[],"images":["a","b","c","d","e"]}`)
	defer srv.Close()

	c := NewTavilyClient(NewTavilyClientParams{APIKey: "k", Endpoint: srv.URL})
	_, images, err := c.Search(context.Background(), "dolphins")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(images) != maxImagesPerSearch {
		t.Errorf("images = %d, want %d", len(images), maxImagesPerSearch)
	}
}

func TestSearchCachesRepeatQueries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[],"images":[]}`)
	}))
	defer srv.Close()

	c := NewTavilyClient(NewTavilyClientParams{APIKey: "k", Endpoint: srv.URL})
	for i := 0; i < 3; i++ {
		if _, _, err := c.Search(context.Background(), "dolphins"); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("backend hits = %d, want 1 (served from cache after that)", got)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewTavilyClient(NewTavilyClientParams{APIKey: "k", Endpoint: srv.URL})
	if _, _, err := c.Search(context.Background(), "dolphins"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
