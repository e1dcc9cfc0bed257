package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/redstring/corkboard/pkg/ai"
	"github.com/redstring/corkboard/pkg/logger"
)

// Round-keyed system prompts. The register escalates with the round; rounds
// past the third stay at peak.
var systemPrompts = map[int]string{
	1: "You ARE the conspiracy theorist. You just stumbled onto something BIG. Talk like a paranoid late-night radio host whispering into the mic. Use phrases like 'follow the money', 'they don't want you to see this', 'open your eyes'. Respond in EXACTLY 2-3 sentences. First person. You're narrating YOUR investigation.",
	2: "You ARE a deep-state-obsessed conspiracy theorist who is SEEING THE PATTERN. You're pacing your apartment, pinning strings to your cork board, muttering to yourself. Use dramatic pauses (ellipses), rhetorical questions, and phrases like 'coincidence? I THINK NOT' and 'the rabbit hole goes deeper'. Respond in EXACTLY 2-3 sentences. First person, increasingly paranoid.",
	3: "You ARE a FULLY UNHINGED conspiracy theorist who has CRACKED THE CODE. You're recording a frantic voice memo at 3am. Use ALL CAPS for key revelations, reference shadow cabals and hidden agendas, insist NOTHING is a coincidence and EVERYTHING is connected. Be wildly entertaining. Respond in EXACTLY 2-3 sentences. First person, peak unhinged energy.",
}

var fallbacks = map[int]string{
	1: "Interesting...",
	2: "THIS IS NOT A COINCIDENCE.",
	3: "THEY DON'T WANT YOU TO KNOW THIS.",
}

// Narrator generates round-appropriate commentary about a finding. It is a
// pure consumer of round results and holds no mutable state.
type Narrator struct {
	client ai.Client
}

// NewNarrator creates a narrator on the given client.
func NewNarrator(client ai.Client) *Narrator {
	return &Narrator{client: client}
}

// Narrate produces narration for a round's insight, streaming chunks to
// onChunk as they arrive (onChunk may be nil). It never fails: on any
// provider error a canned line matching the round's register is returned.
func (n *Narrator) Narrate(
	ctx context.Context,
	round int,
	topicA string,
	topicB string,
	insight string,
	entityCount int,
	onChunk func(string),
) string {
	tier := round
	if tier < 1 {
		tier = 1
	}
	if tier > 3 {
		tier = 3
	}

	prompt := fmt.Sprintf(
		"React to this finding about %s and %s: '%s'. %d entities on the board so far.",
		topicA, topicB, insight, entityCount,
	)

	stream, err := n.client.GenerateChatStream(
		ctx,
		[]ai.ChatMessage{{Role: "user", Message: prompt}},
		ai.WithSystemPrompts(systemPrompts[tier]),
	)
	if err != nil {
		logger.Warn("[Narrator] Narration failed", "round", round, "err", err)
		return fallbacks[tier]
	}

	var builder strings.Builder
	for event := range stream {
		if event.Type != "content" {
			continue
		}
		builder.WriteString(event.Content)
		if onChunk != nil {
			onChunk(event.Content)
		}
	}

	narration := strings.TrimSpace(builder.String())
	if narration == "" {
		return fallbacks[tier]
	}
	return narration
}
