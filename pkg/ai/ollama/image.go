package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ollama/ollama/api"
)

const maxImageBytes = 8 << 20

// DescribeImage fetches the image at imageURL and sends a vision chat
// request with its raw bytes, returning the model's textual reading.
func (c *BoardOllamaClient) DescribeImage(
	ctx context.Context,
	prompt string,
	imageURL string,
) (string, error) {
	raw, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	stream := false
	req := &api.ChatRequest{
		Model: c.imageModel,
		Messages: []api.Message{
			{Role: "system", Content: prompt},
			{
				Role:   "user",
				Images: []api.ImageData{raw},
			},
		},
		Stream: &stream,
	}

	final, err := c.collectChat(ctx, req)
	if err != nil {
		return "", err
	}

	return final.Message.Content, nil
}

func (c *BoardOllamaClient) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", res.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}

	return raw, nil
}
