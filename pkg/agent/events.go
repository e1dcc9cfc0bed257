package agent

import (
	"context"

	"github.com/redstring/corkboard/pkg/common"
)

// Event types emitted by the loop, in order: zero or more round/narration
// pairs, then exactly one terminal completed or failed event.
const (
	EventRound     = "round"
	EventNarration = "narration"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// Event is one progress notification for a run. Terminal events carry the
// final board snapshot.
type Event struct {
	Type      string              `json:"type"`
	RunID     string              `json:"run_id"`
	Round     *common.RoundResult `json:"round,omitempty"`
	Narration string              `json:"narration,omitempty"`
	State     string              `json:"state,omitempty"`
	Snapshot  *common.Snapshot    `json:"snapshot,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ProgressSink receives loop events for presentation. Delivery failure is
// never fatal to a round; the loop logs and moves on.
type ProgressSink interface {
	Publish(ctx context.Context, event Event) error
}

// MultiSink fans one event out to several sinks.
type MultiSink []ProgressSink

func (m MultiSink) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
