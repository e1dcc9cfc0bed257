package openai

import (
	"sync"

	"github.com/redstring/corkboard/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// BoardOpenAIClient implements the ai.Client interface against an
// OpenAI-compatible API. Separate clients are kept for chat and vision so
// they can point at different endpoints.
type BoardOpenAIClient struct {
	chatModel  string
	imageModel string

	chatURL  string
	chatKey  string
	imageURL string
	imageKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient  *openai.Client
	ImageClient *openai.Client
}

// NewBoardOpenAIClientParams defines the configuration parameters for
// creating a new BoardOpenAIClient. When ImageURL/ImageKey are empty, the
// chat endpoint is reused for vision requests.
type NewBoardOpenAIClientParams struct {
	ChatModel  string
	ImageModel string

	ChatURL  string
	ChatKey  string
	ImageURL string
	ImageKey string
}

// NewBoardOpenAIClient creates a client configured with the provided
// parameters.
func NewBoardOpenAIClient(params NewBoardOpenAIClientParams) *BoardOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)

	imageClient := chatClient
	if params.ImageKey != "" {
		imageClient = newOpenaiClient(params.ImageURL, params.ImageKey)
	}

	imageModel := params.ImageModel
	if imageModel == "" {
		imageModel = params.ChatModel
	}

	return &BoardOpenAIClient{
		chatModel:  params.ChatModel,
		imageModel: imageModel,

		chatURL:  params.ChatURL,
		chatKey:  params.ChatKey,
		imageURL: params.ImageURL,
		imageKey: params.ImageKey,

		metricsLock: sync.Mutex{},

		ChatClient:  chatClient,
		ImageClient: imageClient,
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *BoardOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *BoardOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the accumulated usage metrics.
func (c *BoardOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
