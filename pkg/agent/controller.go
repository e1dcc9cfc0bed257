package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/store"
)

// DefaultIntensityGain is the tuning constant k in the intensity update
// min(1, old + k*log(1+touched)). The logarithm makes the board harder to
// escalate as it fills up.
const DefaultIntensityGain = 0.15

const digestTopRelationships = 3

// Controller executes exactly one round: merge extraction tuples into the
// board, attach vision notes, update intensity, and build the round digest.
// When a durable store is attached the merged state is mirrored to it after
// the in-memory merge.
type Controller struct {
	gain    float64
	store   store.GraphStore
	durable bool
}

// ControllerParams configures a Controller. Store is optional; Durable makes
// store failures fatal to the round instead of logged-and-ignored.
type ControllerParams struct {
	IntensityGain float64
	Store         store.GraphStore
	Durable       bool
}

// NewController creates a Controller. A zero IntensityGain selects the
// default.
func NewController(params ControllerParams) *Controller {
	gain := params.IntensityGain
	if gain <= 0 {
		gain = DefaultIntensityGain
	}
	return &Controller{
		gain:    gain,
		store:   params.Store,
		durable: params.Durable,
	}
}

// RunRound merges one round's raw findings into the session. Malformed
// tuples (missing subject or object, or degenerate self-loops) are dropped
// and counted, never fatal. The only fatal outcome is a durable store
// failure, which surfaces wrapping common.ErrStorageUnavailable with all
// in-memory state preserved.
func (c *Controller) RunRound(
	ctx context.Context,
	session *Session,
	extractions []common.Extraction,
	visionNotes []string,
) (common.RoundResult, error) {
	session.mu.Lock()

	round := session.roundNumber
	board := session.board
	board.ResetTouch()

	entitiesBefore := board.EntityCount()
	touched := 0
	skipped := 0
	var touchedRels []*common.Relationship

	for _, tuple := range extractions {
		if strings.TrimSpace(tuple.Subject) == "" || strings.TrimSpace(tuple.Object) == "" {
			logger.Warn("[Round] Dropping malformed tuple",
				"round", round, "err", common.ErrMalformedExtraction)
			skipped++
			continue
		}

		rel, err := board.UpsertRelationship(tuple.Subject, tuple.Object, tuple.Description, round)
		if err != nil {
			if errors.Is(err, common.ErrSelfLoop) || errors.Is(err, common.ErrInvalidEntity) {
				logger.Warn("[Round] Dropping tuple", "round", round, "err", err)
				skipped++
				continue
			}
			session.mu.Unlock()
			return common.RoundResult{}, err
		}
		board.SetKind(tuple.Subject, tuple.Kind)

		touched++
		touchedRels = append(touchedRels, rel)
	}

	for _, note := range visionNotes {
		if strings.TrimSpace(note) == "" {
			continue
		}
		board.AttachNote(note)
	}

	entitiesAdded := board.EntityCount() - entitiesBefore

	intensity := session.intensity + c.gain*math.Log1p(float64(touched))
	if intensity > 1.0 {
		intensity = 1.0
	}
	session.intensity = intensity
	session.skipped += skipped

	result := common.RoundResult{
		RoundNumber:          round,
		EntitiesAdded:        entitiesAdded,
		RelationshipsTouched: touched,
		Skipped:              skipped,
		IntensityAfter:       intensity,
		SummaryText:          buildDigest(round, entitiesAdded, touched, skipped, touchedRels),
	}

	snapshot := board.Snapshot()
	session.mu.Unlock()

	if c.store != nil {
		if err := c.mirror(ctx, session.runID, snapshot); err != nil {
			if c.durable {
				return result, err
			}
			logger.Warn("[Round] Store mirror failed, continuing in-memory",
				"run", session.runID, "err", err)
		}
	}

	return result, nil
}

// RecordEvidence appends the round digest to the session's evidence log and
// mirrors it to the store under the same fatality policy as RunRound.
func (c *Controller) RecordEvidence(
	ctx context.Context,
	session *Session,
	result common.RoundResult,
) (common.Finding, error) {
	session.mu.Lock()
	finding, err := session.evidence.Record(result)
	session.mu.Unlock()
	if err != nil {
		return common.Finding{}, fmt.Errorf("record evidence: %w", err)
	}

	if c.store != nil {
		if err := c.store.SaveFinding(ctx, session.runID, finding); err != nil {
			if c.durable {
				return finding, err
			}
			logger.Warn("[Round] Finding mirror failed, continuing in-memory",
				"run", session.runID, "err", err)
		}
	}

	return finding, nil
}

func (c *Controller) mirror(ctx context.Context, runID string, snapshot common.Snapshot) error {
	if err := c.store.SaveEntities(ctx, runID, snapshot.Entities); err != nil {
		return err
	}
	return c.store.SaveRelationships(ctx, runID, snapshot.Relationships)
}

// buildDigest produces the deterministic round summary stored in the
// evidence log: counts plus the highest-weight relationships touched this
// round.
func buildDigest(round, entitiesAdded, touched, skipped int, rels []*common.Relationship) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Round %d: %d new entities, %d connections touched",
		round+1, entitiesAdded, touched)
	if skipped > 0 {
		fmt.Fprintf(&builder, ", %d dropped", skipped)
	}
	builder.WriteString(".")

	top := dedupeRelationships(rels)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Weight > top[j].Weight
	})
	if len(top) > digestTopRelationships {
		top = top[:digestTopRelationships]
	}
	for _, rel := range top {
		fmt.Fprintf(&builder, " %s -> %s: %s (w%d).",
			rel.SourceID, rel.TargetID, rel.Description, rel.Weight)
	}

	return builder.String()
}

func dedupeRelationships(rels []*common.Relationship) []*common.Relationship {
	seen := make(map[*common.Relationship]bool, len(rels))
	out := make([]*common.Relationship, 0, len(rels))
	for _, rel := range rels {
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, rel)
	}
	return out
}
