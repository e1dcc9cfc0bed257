package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/redstring/corkboard/pkg/ai"
	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/search"
	"github.com/redstring/corkboard/pkg/store"
)

const (
	defaultContextChars = 1200
	maxImagesPerRound   = 2
)

// Searcher is the search capability consumed by the loop. A failed or
// timed-out search is treated as an empty result set.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, []string, error)
}

// ExtractionProvider turns raw search text into tuples plus an insight, and
// generates follow-up queries seeded by the previous round's insight.
type ExtractionProvider interface {
	Extract(ctx context.Context, topicA, topicB, text, priorContext string) ([]common.Extraction, string, error)
	DeeperQueries(ctx context.Context, topicA, topicB, previousInsight string) []string
}

// VisionFunc analyzes one image URL and returns a free-text note, empty on
// failure.
type VisionFunc func(ctx context.Context, topicA, topicB, imageURL string) string

// NarrationProvider generates round commentary. Implementations never fail;
// they fall back to canned lines.
type NarrationProvider interface {
	Narrate(ctx context.Context, round int, topicA, topicB, insight string, entityCount int, onChunk func(string)) string
}

// Loop runs a session's rounds strictly sequentially. Within a round,
// independent sub-queries are issued concurrently and joined before any
// merge, so the board only ever sees one writer.
//
// Each loop owns no shared mutable state; independent sessions run in
// parallel with their own Loop values or share one (the Loop itself is
// read-only after construction).
type Loop struct {
	search       Searcher
	extractor    ExtractionProvider
	vision       VisionFunc
	narrator     NarrationProvider
	sink         ProgressSink
	controller   *Controller
	contextChars int
}

// LoopParams configures a Loop. Search and Extractor are required; Vision,
// Narrator, Sink, and Store are optional capabilities.
type LoopParams struct {
	Search        Searcher
	Extractor     ExtractionProvider
	Vision        VisionFunc
	Narrator      NarrationProvider
	Sink          ProgressSink
	Store         store.GraphStore
	Durable       bool
	IntensityGain float64
	ContextChars  int
}

// NewLoop creates a Loop from its capabilities.
func NewLoop(params LoopParams) (*Loop, error) {
	if params.Search == nil {
		return nil, errors.New("loop requires a search provider")
	}
	if params.Extractor == nil {
		return nil, errors.New("loop requires an extraction provider")
	}
	contextChars := params.ContextChars
	if contextChars <= 0 {
		contextChars = defaultContextChars
	}
	return &Loop{
		search:    params.Search,
		extractor: params.Extractor,
		vision:    params.Vision,
		narrator:  params.Narrator,
		sink:      params.Sink,
		controller: NewController(ControllerParams{
			IntensityGain: params.IntensityGain,
			Store:         params.Store,
			Durable:       params.Durable,
		}),
		contextChars: contextChars,
	}, nil
}

// Run drives the session from Idle to a terminal state. Cancellation is
// honored at round boundaries only: in-flight external calls finish, the
// completed rounds stay queryable, and the session ends Completed with
// partial rounds. The only failure path is a durable store error.
func (l *Loop) Run(ctx context.Context, session *Session) error {
	if session.State() != StateIdle {
		return fmt.Errorf("session %s already started", session.runID)
	}
	session.setState(StateRunning, nil)

	topicA, topicB := session.Topics()
	logger.Info("[Loop] Starting investigation",
		"run", session.runID, "topicA", topicA, "topicB", topicB, "rounds", session.rounds)

	lastInsight := ""
	for round := 0; round < session.rounds; round++ {
		select {
		case <-ctx.Done():
			logger.Info("[Loop] Cancelled at round boundary",
				"run", session.runID, "completed", session.RoundsCompleted())
			l.finish(session, StateCompleted, nil)
			return nil
		default:
		}

		result, err := l.runRound(ctx, session, round, lastInsight, &lastInsight)
		if err != nil {
			logger.Error("[Loop] Round failed", "run", session.runID, "round", round, "err", err)
			l.finish(session, StateFailed, err)
			return err
		}

		session.completeRound()
		l.publish(ctx, Event{
			Type:  EventRound,
			RunID: session.runID,
			Round: &result,
		})

		if l.narrator != nil {
			narration := l.narrator.Narrate(ctx, round+1, topicA, topicB, lastInsight,
				len(session.Snapshot().Entities), nil)
			l.publish(ctx, Event{
				Type:      EventNarration,
				RunID:     session.runID,
				Narration: narration,
			})
		}
	}

	l.finish(session, StateCompleted, nil)
	return nil
}

func (l *Loop) runRound(
	ctx context.Context,
	session *Session,
	round int,
	previousInsight string,
	insightOut *string,
) (common.RoundResult, error) {
	topicA, topicB := session.Topics()

	queries := l.buildQueries(ctx, topicA, topicB, round, previousInsight)
	text, imageURLs := l.gatherEvidence(ctx, queries)

	session.mu.RLock()
	priorContext := session.evidence.ContextForNextRound(l.contextChars)
	session.mu.RUnlock()

	tuples, insight, err := l.extractor.Extract(ctx, topicA, topicB, text, priorContext)
	if err != nil {
		// same degraded-round policy as an empty search result
		logger.Warn("[Loop] Extraction failed, continuing with empty round",
			"run", session.runID, "round", round, "err", err)
		tuples = nil
	}
	*insightOut = insight

	var visionNotes []string
	if l.vision != nil {
		for _, url := range imageURLs {
			if len(visionNotes) >= maxImagesPerRound {
				break
			}
			if note := l.vision(ctx, topicA, topicB, url); note != "" {
				visionNotes = append(visionNotes, note)
			}
		}
	}

	result, err := l.controller.RunRound(ctx, session, tuples, visionNotes)
	if err != nil {
		return result, err
	}
	if _, err := l.controller.RecordEvidence(ctx, session, result); err != nil {
		return result, err
	}
	return result, nil
}

// buildQueries picks the round's sub-queries. Round 0 anchors on the topics
// themselves; later rounds ask the model for deeper queries seeded by the
// previous insight.
func (l *Loop) buildQueries(ctx context.Context, topicA, topicB string, round int, previousInsight string) []string {
	if round == 0 {
		return []string{
			topicA,
			topicB,
			fmt.Sprintf("%s %s connection", topicA, topicB),
		}
	}
	return l.extractor.DeeperQueries(ctx, topicA, topicB, previousInsight)
}

// gatherEvidence issues all sub-queries concurrently and joins their results.
// Individual failures degrade to empty results for that sub-query.
func (l *Loop) gatherEvidence(ctx context.Context, queries []string) (string, []string) {
	texts := make([]string, len(queries))
	images := make([][]string, len(queries))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, query := range queries {
		group.Go(func() error {
			hits, imgs, err := l.search.Search(groupCtx, query)
			if err != nil {
				logger.Warn("[Loop] Search failed, treating as empty", "query", query, "err", err)
				return nil
			}
			parts := make([]string, 0, len(hits))
			for _, hit := range hits {
				parts = append(parts, hit.Title+"\n"+hit.Snippet)
			}
			texts[i] = strings.Join(parts, "\n\n")
			images[i] = imgs
			return nil
		})
	}
	_ = group.Wait()

	var textParts []string
	for _, t := range texts {
		if t != "" {
			textParts = append(textParts, t)
		}
	}

	seen := make(map[string]bool)
	var imageURLs []string
	for _, batch := range images {
		for _, url := range batch {
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true
			imageURLs = append(imageURLs, url)
		}
	}

	return strings.Join(textParts, "\n\n"), imageURLs
}

func (l *Loop) finish(session *Session, state State, cause error) {
	session.setState(state, cause)

	snapshot := session.Snapshot()
	event := Event{
		Type:     EventCompleted,
		RunID:    session.runID,
		State:    state.String(),
		Snapshot: &snapshot,
	}
	if state == StateFailed {
		event.Type = EventFailed
		if cause != nil {
			event.Error = cause.Error()
		}
	}
	l.publish(context.Background(), event)
}

func (l *Loop) publish(ctx context.Context, event Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Publish(ctx, event); err != nil {
		logger.Warn("[Loop] Progress delivery failed", "run", event.RunID, "type", event.Type, "err", err)
	}
}

var _ ExtractionProvider = (*ai.Extractor)(nil)
