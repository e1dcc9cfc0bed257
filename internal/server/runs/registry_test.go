package runs

import (
	"context"
	"testing"

	"github.com/redstring/corkboard/pkg/agent"
)

func newTestRun(t *testing.T, reg *Registry) *Run {
	t.Helper()
	session, err := agent.NewSession("dolphins", "the pyramids", 2)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	_, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return reg.Add(session, cancel)
}

func TestPublishUnknownRun(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Publish(context.Background(), agent.Event{RunID: "nope"}); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestSubscribeReplaysHistory(t *testing.T) {
	reg := NewRegistry()
	run := newTestRun(t, reg)
	runID := run.Session.RunID()

	reg.Publish(context.Background(), agent.Event{Type: agent.EventRound, RunID: runID})
	reg.Publish(context.Background(), agent.Event{Type: agent.EventNarration, RunID: runID})

	history, events, unsubscribe := run.Subscribe()
	defer unsubscribe()

	if len(history) != 2 {
		t.Fatalf("history = %d events, want 2", len(history))
	}
	if history[0].Type != agent.EventRound || history[1].Type != agent.EventNarration {
		t.Error("history not in publish order")
	}

	reg.Publish(context.Background(), agent.Event{Type: agent.EventCompleted, RunID: runID})

	event, ok := <-events
	if !ok || event.Type != agent.EventCompleted {
		t.Fatalf("expected live completed event, got %+v (ok=%v)", event, ok)
	}
	if _, ok := <-events; ok {
		t.Error("channel must close after the terminal event")
	}
}

func TestSubscribeAfterTerminal(t *testing.T) {
	reg := NewRegistry()
	run := newTestRun(t, reg)
	runID := run.Session.RunID()

	reg.Publish(context.Background(), agent.Event{Type: agent.EventRound, RunID: runID})
	reg.Publish(context.Background(), agent.Event{Type: agent.EventFailed, RunID: runID})

	history, events, unsubscribe := run.Subscribe()
	defer unsubscribe()

	if len(history) != 2 {
		t.Fatalf("history = %d events, want 2", len(history))
	}
	if _, ok := <-events; ok {
		t.Error("channel for a finished run must be closed immediately")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	run := newTestRun(t, reg)
	runID := run.Session.RunID()

	_, events, unsubscribe := run.Subscribe()
	unsubscribe()

	reg.Publish(context.Background(), agent.Event{Type: agent.EventRound, RunID: runID})

	if _, ok := <-events; ok {
		t.Error("unsubscribed channel must be closed")
	}
}
