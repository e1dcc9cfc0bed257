package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/redstring/corkboard/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// BoardOllamaClient implements the ai.Client interface using Ollama as the
// backend, for locally-hosted models.
type BoardOllamaClient struct {
	chatModel  string
	imageModel string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	httpClient *http.Client

	Client *api.Client
}

// NewBoardOllamaClientParams contains configuration options for creating a
// new BoardOllamaClient.
type NewBoardOllamaClientParams struct {
	ChatModel  string
	ImageModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewBoardOllamaClient creates a new Ollama-based AI client. It connects to
// the Ollama server at BaseURL (or the default when empty).
func NewBoardOllamaClient(params NewBoardOllamaClientParams) (*BoardOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	imageModel := params.ImageModel
	if imageModel == "" {
		imageModel = params.ChatModel
	}

	return &BoardOllamaClient{
		chatModel:  params.ChatModel,
		imageModel: imageModel,

		reqLock: semaphore.NewWeighted(maxConcurrent),

		metricsLock: sync.Mutex{},

		httpClient: httpClient,

		Client: cli,
	}, nil
}

func (c *BoardOllamaClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *BoardOllamaClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the accumulated usage metrics.
func (c *BoardOllamaClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
