package ai

import (
	"context"
	"errors"
	"testing"
)

type fakeClient struct {
	completion    string
	completionErr error

	formatFn  func(out any) error
	streamFn  func() (<-chan StreamEvent, error)
	described string
	imageErr  error
}

func (f *fakeClient) GenerateCompletion(context.Context, string, ...GenerateOption) (string, error) {
	return f.completion, f.completionErr
}

func (f *fakeClient) GenerateCompletionWithFormat(_ context.Context, _, _, _ string, out any, _ ...GenerateOption) error {
	if f.formatFn != nil {
		return f.formatFn(out)
	}
	return nil
}

func (f *fakeClient) GenerateChatStream(context.Context, []ChatMessage, ...GenerateOption) (<-chan StreamEvent, error) {
	if f.streamFn != nil {
		return f.streamFn()
	}
	ch := make(chan StreamEvent)
	close(ch)
	return ch, nil
}

func (f *fakeClient) DescribeImage(context.Context, string, string) (string, error) {
	return f.described, f.imageErr
}

func (f *fakeClient) ResetMetrics()             {}
func (f *fakeClient) GetMetrics() ModelMetrics { return ModelMetrics{} }

func TestExtractEmptyInput(t *testing.T) {
	called := false
	e := NewExtractor(&fakeClient{
		formatFn: func(any) error {
			called = true
			return nil
		},
	}, "")

	tuples, insight, err := e.Extract(context.Background(), "dolphins", "the pyramids", "", "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tuples) != 0 {
		t.Errorf("expected no tuples, got %d", len(tuples))
	}
	if insight != FallbackInsight {
		t.Errorf("insight = %q, want fallback", insight)
	}
	if called {
		t.Error("empty input must not reach the model")
	}
}

func TestDeeperQueries(t *testing.T) {
	tests := []struct {
		name       string
		client     *fakeClient
		wantCount  int
		wantFirst  string
		isFallback bool
	}{
		{
			name:       "model failure falls back",
			client:     &fakeClient{completionErr: errors.New("model down")},
			wantCount:  3,
			wantFirst:  "dolphins secret connections",
			isFallback: true,
		},
		{
			name:       "unparseable output falls back",
			client:     &fakeClient{completion: "no json here at all, sorry ["},
			wantCount:  3,
			wantFirst:  "dolphins secret connections",
			isFallback: true,
		},
		{
			name:       "empty list falls back",
			client:     &fakeClient{completion: `[]`},
			wantCount:  3,
			wantFirst:  "dolphins secret connections",
			isFallback: true,
		},
		{
			name:      "valid output passes through",
			client:    &fakeClient{completion: `["who funds dolphin research", "pyramid acoustics"]`},
			wantCount: 2,
			wantFirst: "who funds dolphin research",
		},
		{
			name:      "oversized list is capped",
			client:    &fakeClient{completion: `["a","b","c","d","e"]`},
			wantCount: 3,
			wantFirst: "a",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewExtractor(tc.client, "")
			queries := e.DeeperQueries(context.Background(), "dolphins", "the pyramids", "an insight")
			if len(queries) != tc.wantCount {
				t.Fatalf("got %d queries, want %d: %v", len(queries), tc.wantCount, queries)
			}
			if queries[0] != tc.wantFirst {
				t.Errorf("queries[0] = %q, want %q", queries[0], tc.wantFirst)
			}
			if tc.isFallback && queries[2] != "dolphins the pyramids conspiracy" {
				t.Errorf("fallback queries[2] = %q", queries[2])
			}
		})
	}
}

func TestAnalyzeImage(t *testing.T) {
	t.Run("returns the model note", func(t *testing.T) {
		note := AnalyzeImage(context.Background(), &fakeClient{described: "a suspicious fin"},
			"dolphins", "the pyramids", "https://img.example/a.jpg")
		if note != "a suspicious fin" {
			t.Errorf("note = %q", note)
		}
	})

	t.Run("empty on failure", func(t *testing.T) {
		note := AnalyzeImage(context.Background(), &fakeClient{imageErr: errors.New("no vision")},
			"dolphins", "the pyramids", "https://img.example/a.jpg")
		if note != "" {
			t.Errorf("note = %q, want empty", note)
		}
	})
}
