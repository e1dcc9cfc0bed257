package ai

import (
	"context"
	"fmt"

	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/logger"
)

// FallbackInsight is used when extraction produced nothing useful.
const FallbackInsight = "No connections found yet..."

const maxExtractInputTokens = 2048

type extractTuple struct {
	Subject     string `json:"subject" jsonschema_description:"Name of the first entity in the connection"`
	Description string `json:"description" jsonschema_description:"One-sentence description of how the subject and object are connected"`
	Object      string `json:"object" jsonschema_description:"Name of the second entity in the connection"`
	Kind        string `json:"kind" jsonschema_description:"Category of the subject entity, e.g. person, place, organization"`
}

type extractResponse struct {
	Connections []extractTuple `json:"connections" jsonschema_description:"Suspicious connections identified in the text"`
	Insight     string         `json:"insight" jsonschema_description:"One-sentence summary of the most suspicious connection found"`
}

// Extractor turns raw search text into entity/relationship tuples using a
// structured-output model call. It is stateless; prior context is passed in
// per call.
type Extractor struct {
	client       Client
	tokenEncoder string
}

// NewExtractor creates an Extractor on the given client. encoder may be
// empty to use the default token encoding.
func NewExtractor(client Client, encoder string) *Extractor {
	if encoder == "" {
		encoder = DefaultTokenEncoder
	}
	return &Extractor{
		client:       client,
		tokenEncoder: encoder,
	}
}

// Extract runs one extraction call over text, with priorContext replayed
// from the evidence log. It returns the extracted tuples plus a one-sentence
// insight. Empty input yields zero tuples without a model call.
func (e *Extractor) Extract(
	ctx context.Context,
	topicA string,
	topicB string,
	text string,
	priorContext string,
) ([]common.Extraction, string, error) {
	capped, err := CapTokens(text, e.tokenEncoder, maxExtractInputTokens)
	if err != nil {
		return nil, FallbackInsight, fmt.Errorf("cap extraction input: %w", err)
	}
	if capped == "" {
		return nil, FallbackInsight, nil
	}

	if priorContext == "" {
		priorContext = "(none)"
	}

	var res extractResponse
	err = e.client.GenerateCompletionWithFormat(
		ctx,
		"extract_entities_and_connections",
		"Extract entities and suspicious connections from web search results.",
		fmt.Sprintf(ExtractUserPrompt, priorContext, capped),
		&res,
		WithSystemPrompts(fmt.Sprintf(ExtractSystemPrompt, topicA, topicB)),
	)
	if err != nil {
		return nil, FallbackInsight, fmt.Errorf("extraction call: %w", err)
	}

	tuples := make([]common.Extraction, 0, len(res.Connections))
	for _, conn := range res.Connections {
		tuples = append(tuples, common.Extraction{
			Subject:     conn.Subject,
			Description: conn.Description,
			Object:      conn.Object,
			Kind:        conn.Kind,
		})
	}

	insight := res.Insight
	if insight == "" {
		insight = FallbackInsight
	}

	return tuples, insight, nil
}

// DeeperQueries generates three follow-up search queries seeded by the
// previous round's insight. It never fails: on any model or parse error the
// deterministic fallback queries are returned.
func (e *Extractor) DeeperQueries(
	ctx context.Context,
	topicA string,
	topicB string,
	previousInsight string,
) []string {
	fallback := []string{
		fmt.Sprintf("%s secret connections", topicA),
		fmt.Sprintf("%s hidden links", topicB),
		fmt.Sprintf("%s %s conspiracy", topicA, topicB),
	}

	raw, err := e.client.GenerateCompletion(
		ctx,
		fmt.Sprintf(DeeperQueriesPrompt, topicA, topicB, previousInsight),
		WithSystemPrompts("You are a conspiracy theorist AI. Find suspicious connections."),
	)
	if err != nil {
		logger.Warn("[Extractor] Query generation failed", "err", err)
		return fallback
	}

	var queries []string
	if err := UnmarshalFlexible(raw, &queries); err != nil {
		logger.Warn("[Extractor] Query generation returned unparseable output", "err", err)
		return fallback
	}
	if len(queries) == 0 {
		return fallback
	}
	if len(queries) > 3 {
		queries = queries[:3]
	}
	return queries
}

// AnalyzeImage asks the vision model for a conspiratorial reading of an
// image URL. Empty string on failure; vision is strictly best-effort.
func AnalyzeImage(ctx context.Context, client Client, topicA, topicB, imageURL string) string {
	note, err := client.DescribeImage(ctx, fmt.Sprintf(VisionPrompt, topicA, topicB), imageURL)
	if err != nil {
		logger.Warn("[Vision] Image analysis failed", "url", imageURL, "err", err)
		return ""
	}
	return note
}
