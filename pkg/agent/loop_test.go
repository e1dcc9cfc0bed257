package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/search"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	images  []string
	err     error
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]search.Result, []string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	return []search.Result{
		{Title: "Result for " + query, URL: "https://example.com", Snippet: "snippet about " + query},
	}, f.images, nil
}

func (f *fakeSearch) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

type fakeExtractor struct {
	perRound [][]common.Extraction
	insights []string
	contexts []string
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, _, _, _, priorContext string) ([]common.Extraction, string, error) {
	f.contexts = append(f.contexts, priorContext)
	call := f.calls
	f.calls++

	var tuples []common.Extraction
	if call < len(f.perRound) {
		tuples = f.perRound[call]
	}
	insight := "something connects"
	if call < len(f.insights) {
		insight = f.insights[call]
	}
	return tuples, insight, nil
}

func (f *fakeExtractor) DeeperQueries(_ context.Context, topicA, topicB, _ string) []string {
	return []string{
		topicA + " deeper",
		topicB + " deeper",
		topicA + " " + topicB + " deeper",
	}
}

type recordingSink struct {
	mu      sync.Mutex
	events  []Event
	onEvent func(Event)
}

func (s *recordingSink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	if s.onEvent != nil {
		s.onEvent(event)
	}
	return nil
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

type failingStore struct {
	failAfter int
	saves     int
}

func (f *failingStore) SaveEntities(context.Context, string, []common.Entity) error {
	f.saves++
	if f.saves > f.failAfter {
		return fmt.Errorf("%w: connection refused", common.ErrStorageUnavailable)
	}
	return nil
}

func (f *failingStore) SaveRelationships(context.Context, string, []common.Relationship) error {
	return nil
}

func (f *failingStore) SaveFinding(context.Context, string, common.Finding) error {
	return nil
}

func (f *failingStore) Close() {}

func newTestLoop(t *testing.T, params LoopParams) *Loop {
	t.Helper()
	loop, err := NewLoop(params)
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}
	return loop
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession("dolphins", "the pyramids", 0); err == nil {
		t.Error("expected error for zero rounds")
	}

	session, err := NewSession("dolphins", "the pyramids", 3)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if session.State() != StateIdle {
		t.Errorf("new session state = %v, want idle", session.State())
	}
	snap := session.Snapshot()
	if len(snap.Entities) != 2 {
		t.Fatalf("expected 2 anchor entities, got %d", len(snap.Entities))
	}
	if snap.Entities[0].ID != "dolphins" || snap.Entities[1].ID != "the pyramids" {
		t.Errorf("unexpected anchors: %s, %s", snap.Entities[0].ID, snap.Entities[1].ID)
	}
}

func TestLoopEndToEnd(t *testing.T) {
	extractor := &fakeExtractor{
		perRound: [][]common.Extraction{
			{
				{Subject: "Dolphins", Description: "linked to", Object: "the Pyramids"},
				{Subject: "Dolphins", Description: "guards", Object: "Atlantis"},
				{Subject: "ghost", Description: "watches", Object: ""},
			},
			{
				{Subject: "dolphins", Description: "Linked To", Object: "The Pyramids"},
				{Subject: "Atlantis", Description: "funded by", Object: "the Vatican"},
			},
		},
		insights: []string{"round zero insight", "round one insight"},
	}
	sink := &recordingSink{}
	loop := newTestLoop(t, LoopParams{
		Search:    &fakeSearch{},
		Extractor: extractor,
		Sink:      sink,
	})

	session, err := NewSession("dolphins", "the pyramids", 2)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if err := loop.Run(context.Background(), session); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if session.State() != StateCompleted {
		t.Errorf("state = %v, want completed", session.State())
	}
	if session.RoundsCompleted() != 2 {
		t.Errorf("rounds completed = %d, want 2", session.RoundsCompleted())
	}
	if session.SkippedTotal() != 1 {
		t.Errorf("skipped = %d, want 1", session.SkippedTotal())
	}

	snap := session.Snapshot()
	// 2 anchors + atlantis (round 0) + the vatican (round 1)
	if len(snap.Entities) != 4 {
		t.Errorf("entities = %d, want 4", len(snap.Entities))
	}

	weightTwo := 0
	for _, rel := range snap.Relationships {
		if rel.Weight == 2 {
			weightTwo++
			if rel.RoundAdded != 0 {
				t.Errorf("reinforced relationship round added = %d, want 0", rel.RoundAdded)
			}
		}
	}
	if weightTwo != 1 {
		t.Errorf("relationships with weight 2 = %d, want exactly 1", weightTwo)
	}

	var roundResults []common.RoundResult
	terminal := 0
	for _, event := range sink.all() {
		switch event.Type {
		case EventRound:
			roundResults = append(roundResults, *event.Round)
		case EventCompleted, EventFailed:
			terminal++
		}
	}
	if len(roundResults) != 2 {
		t.Fatalf("round events = %d, want 2", len(roundResults))
	}
	for i, result := range roundResults {
		if result.RoundNumber != i {
			t.Errorf("round event %d has round number %d", i, result.RoundNumber)
		}
	}
	if terminal != 1 {
		t.Errorf("terminal events = %d, want exactly 1", terminal)
	}
	if last := sink.all()[len(sink.all())-1]; last.Type != EventCompleted {
		t.Errorf("last event type = %s, want completed", last.Type)
	}

	if roundResults[1].IntensityAfter <= roundResults[0].IntensityAfter {
		t.Errorf("intensity must strictly increase: %f then %f",
			roundResults[0].IntensityAfter, roundResults[1].IntensityAfter)
	}

	// round 1 extraction must see round 0's digest as prior context
	if len(extractor.contexts) != 2 {
		t.Fatalf("extract calls = %d, want 2", len(extractor.contexts))
	}
	if extractor.contexts[0] != "" {
		t.Errorf("round 0 prior context = %q, want empty", extractor.contexts[0])
	}
	if !strings.Contains(extractor.contexts[1], "Round 1:") {
		t.Errorf("round 1 prior context missing round 0 digest: %q", extractor.contexts[1])
	}
}

func TestLoopQueryConstruction(t *testing.T) {
	searcher := &fakeSearch{}
	loop := newTestLoop(t, LoopParams{
		Search:    searcher,
		Extractor: &fakeExtractor{},
	})

	session, _ := NewSession("dolphins", "the pyramids", 2)
	if err := loop.Run(context.Background(), session); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seen := searcher.seen()
	if len(seen) != 6 {
		t.Fatalf("queries = %d, want 6", len(seen))
	}

	round0 := map[string]bool{}
	for _, q := range seen[:3] {
		round0[q] = true
	}
	for _, want := range []string{"dolphins", "the pyramids", "dolphins the pyramids connection"} {
		if !round0[want] {
			t.Errorf("round 0 queries missing %q: %v", want, seen[:3])
		}
	}
	for _, q := range seen[3:] {
		if !strings.Contains(q, "deeper") {
			t.Errorf("round 1 expected a deeper query, got %q", q)
		}
	}
}

func TestLoopCancellationAtRoundBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	sink.onEvent = func(event Event) {
		if event.Type == EventRound && event.Round.RoundNumber == 1 {
			cancel()
		}
	}

	loop := newTestLoop(t, LoopParams{
		Search: &fakeSearch{},
		Extractor: &fakeExtractor{
			perRound: [][]common.Extraction{
				{{Subject: "A", Description: "knows", Object: "B"}},
				{{Subject: "B", Description: "funds", Object: "C"}},
				{{Subject: "C", Description: "owns", Object: "D"}},
			},
		},
		Sink: sink,
	})

	session, _ := NewSession("dolphins", "the pyramids", 5)
	if err := loop.Run(ctx, session); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if session.State() != StateCompleted {
		t.Errorf("state = %v, want completed", session.State())
	}
	if session.RoundsCompleted() != 2 {
		t.Errorf("rounds completed = %d, want 2", session.RoundsCompleted())
	}

	snap := session.Snapshot()
	if len(snap.Entities) == 0 || len(snap.Relationships) != 2 {
		t.Errorf("expected a consistent partial graph, got %d entities and %d relationships",
			len(snap.Entities), len(snap.Relationships))
	}

	events := sink.all()
	if last := events[len(events)-1]; last.Type != EventCompleted {
		t.Errorf("last event type = %s, want completed", last.Type)
	}
}

func TestLoopDurableStorageFailure(t *testing.T) {
	sink := &recordingSink{}
	loop := newTestLoop(t, LoopParams{
		Search: &fakeSearch{},
		Extractor: &fakeExtractor{
			perRound: [][]common.Extraction{
				{{Subject: "A", Description: "knows", Object: "B"}},
				{{Subject: "B", Description: "funds", Object: "C"}},
			},
		},
		Sink:    sink,
		Store:   &failingStore{failAfter: 1},
		Durable: true,
	})

	session, _ := NewSession("dolphins", "the pyramids", 3)
	err := loop.Run(context.Background(), session)
	if !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("Run error = %v, want ErrStorageUnavailable", err)
	}

	if session.State() != StateFailed {
		t.Errorf("state = %v, want failed", session.State())
	}
	if !errors.Is(session.Err(), common.ErrStorageUnavailable) {
		t.Errorf("session err = %v, want ErrStorageUnavailable", session.Err())
	}

	// state from the completed round and the failed round's merge survives
	snap := session.Snapshot()
	if len(snap.Relationships) != 2 {
		t.Errorf("expected merged state preserved, got %d relationships", len(snap.Relationships))
	}

	events := sink.all()
	if last := events[len(events)-1]; last.Type != EventFailed {
		t.Errorf("last event type = %s, want failed", last.Type)
	}
}

func TestLoopTransientStorageFailureIsNonFatal(t *testing.T) {
	loop := newTestLoop(t, LoopParams{
		Search: &fakeSearch{},
		Extractor: &fakeExtractor{
			perRound: [][]common.Extraction{
				{{Subject: "A", Description: "knows", Object: "B"}},
			},
		},
		Store:   &failingStore{failAfter: 0},
		Durable: false,
	})

	session, _ := NewSession("dolphins", "the pyramids", 1)
	if err := loop.Run(context.Background(), session); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.State() != StateCompleted {
		t.Errorf("state = %v, want completed", session.State())
	}
}

func TestLoopVisionNotes(t *testing.T) {
	var analyzed []string
	loop := newTestLoop(t, LoopParams{
		Search: &fakeSearch{images: []string{
			"https://img.example/one.jpg",
			"https://img.example/two.jpg",
			"https://img.example/three.jpg",
		}},
		Extractor: &fakeExtractor{
			perRound: [][]common.Extraction{
				{{Subject: "A", Description: "knows", Object: "B"}},
			},
		},
		Vision: func(_ context.Context, _, _, imageURL string) string {
			analyzed = append(analyzed, imageURL)
			return "suspicious shadow in " + imageURL
		},
	})

	session, _ := NewSession("dolphins", "the pyramids", 1)
	if err := loop.Run(context.Background(), session); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(analyzed) != 2 {
		t.Fatalf("analyzed %d images, want 2", len(analyzed))
	}
	if analyzed[0] == analyzed[1] {
		t.Error("image urls must be deduplicated")
	}

	snap := session.Snapshot()
	notes := len(snap.Notes)
	for _, entity := range snap.Entities {
		notes += len(entity.Notes)
	}
	if notes != 2 {
		t.Errorf("notes on board = %d, want 2", notes)
	}
}

func TestLoopSearchFailureDegradesToEmptyRound(t *testing.T) {
	loop := newTestLoop(t, LoopParams{
		Search:    &fakeSearch{err: errors.New("search down")},
		Extractor: &fakeExtractor{},
	})

	session, _ := NewSession("dolphins", "the pyramids", 1)
	if err := loop.Run(context.Background(), session); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.State() != StateCompleted {
		t.Errorf("state = %v, want completed", session.State())
	}
}

func TestLoopRejectsRestart(t *testing.T) {
	loop := newTestLoop(t, LoopParams{
		Search:    &fakeSearch{},
		Extractor: &fakeExtractor{},
	})

	session, _ := NewSession("dolphins", "the pyramids", 1)
	if err := loop.Run(context.Background(), session); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if err := loop.Run(context.Background(), session); err == nil {
		t.Error("expected error when re-running a finished session")
	}
}
