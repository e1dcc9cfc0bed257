package graph

import (
	"fmt"

	"github.com/redstring/corkboard/pkg/common"
)

// Board is the in-memory conspiracy graph for one session. It owns all
// entity and relationship state; callers hold only transient references
// during a round.
//
// A Board has exactly one logical writer per round and needs no internal
// locking. Concurrent sessions each get their own Board.
type Board struct {
	entities    map[string]*common.Entity
	entityOrder []string

	relationships map[string]*common.Relationship
	relOrder      []string

	notes       []string
	lastTouched string
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{
		entities:      make(map[string]*common.Entity),
		relationships: make(map[string]*common.Relationship),
	}
}

// UpsertEntity normalizes the label, creates the entity if absent, and
// increments its mention count either way. The returned entity is the
// canonical one owned by the board.
//
// Empty or whitespace-only labels are rejected with common.ErrInvalidEntity.
func (b *Board) UpsertEntity(label string, kind string, round int) (*common.Entity, error) {
	id := NormalizeLabel(label)
	if id == "" {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidEntity, label)
	}

	b.lastTouched = id

	if existing, ok := b.entities[id]; ok {
		existing.MentionCount++
		if existing.Kind == "" && kind != "" {
			existing.Kind = kind
		}
		return existing, nil
	}

	entity := &common.Entity{
		ID:             id,
		Label:          label,
		Kind:           kind,
		FirstSeenRound: round,
		MentionCount:   1,
	}
	b.entities[id] = entity
	b.entityOrder = append(b.entityOrder, id)

	return entity, nil
}

// UpsertRelationship resolves both endpoints via UpsertEntity, auto-creating
// entities named only in a relationship, then merges the edge into the board.
// The merge key is the unordered endpoint pair plus the normalized
// description: a duplicate increments Weight instead of creating a new edge,
// keeping the original direction and RoundAdded.
//
// Returns common.ErrSelfLoop when both endpoints normalize to the same entity.
func (b *Board) UpsertRelationship(sourceLabel, targetLabel, description string, round int) (*common.Relationship, error) {
	if NormalizeLabel(sourceLabel) == NormalizeLabel(targetLabel) {
		return nil, fmt.Errorf("%w: %q", common.ErrSelfLoop, sourceLabel)
	}

	source, err := b.UpsertEntity(sourceLabel, "", round)
	if err != nil {
		return nil, err
	}
	target, err := b.UpsertEntity(targetLabel, "", round)
	if err != nil {
		return nil, err
	}

	key := PairKey(source.ID, target.ID, description)
	if existing, ok := b.relationships[key]; ok {
		existing.Weight++
		return existing, nil
	}

	rel := &common.Relationship{
		SourceID:    source.ID,
		TargetID:    target.ID,
		Description: description,
		Weight:      1,
		RoundAdded:  round,
	}
	b.relationships[key] = rel
	b.relOrder = append(b.relOrder, key)

	return rel, nil
}

// SetKind fills in an entity's kind when none is recorded yet. Kind is
// advisory and never changes once set. Unknown labels are ignored.
func (b *Board) SetKind(label string, kind string) {
	if kind == "" {
		return
	}
	if entity, ok := b.entities[NormalizeLabel(label)]; ok && entity.Kind == "" {
		entity.Kind = kind
	}
}

// AttachNote appends a relationship-free annotation to the most recently
// touched entity, or to the board itself when no entity context exists.
func (b *Board) AttachNote(note string) {
	if b.lastTouched != "" {
		if entity, ok := b.entities[b.lastTouched]; ok {
			entity.Notes = append(entity.Notes, note)
			return
		}
	}
	b.notes = append(b.notes, note)
}

// ResetTouch clears the most-recently-touched entity marker. Called at round
// boundaries so notes never attach to a previous round's entity.
func (b *Board) ResetTouch() {
	b.lastTouched = ""
}

// EntityCount returns the number of entities on the board.
func (b *Board) EntityCount() int {
	return len(b.entities)
}

// RelationshipCount returns the number of merged edges on the board.
func (b *Board) RelationshipCount() int {
	return len(b.relationships)
}

// Snapshot exports a read-only copy of the board in insertion order.
func (b *Board) Snapshot() common.Snapshot {
	snap := common.Snapshot{
		Entities:      make([]common.Entity, 0, len(b.entityOrder)),
		Relationships: make([]common.Relationship, 0, len(b.relOrder)),
	}
	for _, id := range b.entityOrder {
		entity := *b.entities[id]
		if len(entity.Notes) > 0 {
			entity.Notes = append([]string(nil), entity.Notes...)
		}
		snap.Entities = append(snap.Entities, entity)
	}
	for _, key := range b.relOrder {
		snap.Relationships = append(snap.Relationships, *b.relationships[key])
	}
	if len(b.notes) > 0 {
		snap.Notes = append([]string(nil), b.notes...)
	}
	return snap
}
