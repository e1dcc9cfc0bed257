package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/redstring/corkboard/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// DescribeImage sends a vision request for a publicly reachable image URL
// and returns the model's textual reading of it.
func (c *BoardOpenAIClient) DescribeImage(
	ctx context.Context,
	prompt string,
	imageURL string,
) (string, error) {
	if c.ImageClient == nil {
		return "", fmt.Errorf("openai image client not configured")
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.imageModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageURL,
				}),
			}),
		},
	}

	start := time.Now()
	response, err := c.ImageClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	duration := time.Since(start).Milliseconds()

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	})

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}

	return response.Choices[0].Message.Content, nil
}
