package runs

import (
	"context"
	"fmt"
	"sync"

	"github.com/redstring/corkboard/pkg/agent"
	"github.com/redstring/corkboard/pkg/logger"
)

const subscriberBuffer = 16

// Run tracks one board investigation: its session, its cancellation handle,
// and the full event history for websocket replay.
type Run struct {
	Session *agent.Session

	cancel context.CancelFunc

	mu     sync.Mutex
	events []agent.Event
	subs   map[chan agent.Event]bool
	done   bool
}

// Cancel requests cancellation. The loop honors it at the next round
// boundary.
func (r *Run) Cancel() {
	r.cancel()
}

// Subscribe returns the events emitted so far plus a channel for future
// events. The channel is closed after the terminal event. The returned
// function unsubscribes.
func (r *Run) Subscribe() ([]agent.Event, <-chan agent.Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]agent.Event, len(r.events))
	copy(history, r.events)

	ch := make(chan agent.Event, subscriberBuffer)
	if r.done {
		close(ch)
		return history, ch, func() {}
	}

	r.subs[ch] = true
	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.subs[ch] {
			delete(r.subs, ch)
			close(ch)
		}
	}
	return history, ch, unsubscribe
}

func (r *Run) publish(event agent.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	terminal := event.Type == agent.EventCompleted || event.Type == agent.EventFailed
	for ch := range r.subs {
		select {
		case ch <- event:
		default:
			// slow consumer, it catches up from history on reconnect
			logger.Warn("[Runs] Dropping event for slow subscriber", "run", event.RunID)
		}
		if terminal {
			delete(r.subs, ch)
			close(ch)
		}
	}
	if terminal {
		r.done = true
	}
}

// Registry is the in-memory index of active and finished runs. It doubles as
// the loop's progress sink so every event lands in the per-run history.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Add registers a session and its cancellation handle.
func (reg *Registry) Add(session *agent.Session, cancel context.CancelFunc) *Run {
	run := &Run{
		Session: session,
		cancel:  cancel,
		subs:    make(map[chan agent.Event]bool),
	}
	reg.mu.Lock()
	reg.runs[session.RunID()] = run
	reg.mu.Unlock()
	return run
}

// Get looks up a run by ID.
func (reg *Registry) Get(runID string) (*Run, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	run, ok := reg.runs[runID]
	return run, ok
}

// Publish routes a loop event into the owning run's history and subscribers.
func (reg *Registry) Publish(_ context.Context, event agent.Event) error {
	run, ok := reg.Get(event.RunID)
	if !ok {
		return fmt.Errorf("unknown run %s", event.RunID)
	}
	run.publish(event)
	return nil
}
