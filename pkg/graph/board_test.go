package graph

import (
	"errors"
	"testing"

	"github.com/redstring/corkboard/pkg/common"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Dolphins", "dolphins"},
		{"surrounding whitespace", "  the pyramids  ", "the pyramids"},
		{"internal whitespace", "the   \t pyramids", "the pyramids"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabel(tt.input); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUpsertEntityIdempotence(t *testing.T) {
	b := NewBoard()

	first, err := b.UpsertEntity("Dolphins", "animal", 0)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := b.UpsertEntity("Dolphins", "animal", 1)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first != second {
		t.Error("expected both upserts to return the same entity")
	}
	if b.EntityCount() != 1 {
		t.Errorf("expected 1 entity, got %d", b.EntityCount())
	}
	if second.MentionCount != 2 {
		t.Errorf("expected mention count 2, got %d", second.MentionCount)
	}
	if second.FirstSeenRound != 0 {
		t.Errorf("expected first seen round 0, got %d", second.FirstSeenRound)
	}
}

func TestUpsertEntityCaseAndWhitespaceInvariance(t *testing.T) {
	b := NewBoard()

	first, err := b.UpsertEntity("the Pyramids", "", 0)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	second, err := b.UpsertEntity("  the pyramids  ", "", 0)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same id, got %q and %q", first.ID, second.ID)
	}
	if first.Label != "the Pyramids" {
		t.Errorf("expected label as first seen, got %q", first.Label)
	}
}

func TestUpsertEntityRejectsEmptyLabel(t *testing.T) {
	b := NewBoard()

	for _, label := range []string{"", "   ", "\t\n"} {
		if _, err := b.UpsertEntity(label, "", 0); !errors.Is(err, common.ErrInvalidEntity) {
			t.Errorf("UpsertEntity(%q) error = %v, want ErrInvalidEntity", label, err)
		}
	}
	if b.EntityCount() != 0 {
		t.Errorf("expected empty board, got %d entities", b.EntityCount())
	}
}

func TestUpsertEntityKindFill(t *testing.T) {
	b := NewBoard()

	entity, _ := b.UpsertEntity("Dolphins", "", 0)
	if entity.Kind != "" {
		t.Fatalf("expected empty kind, got %q", entity.Kind)
	}

	entity, _ = b.UpsertEntity("dolphins", "animal", 1)
	if entity.Kind != "animal" {
		t.Errorf("expected kind filled to %q, got %q", "animal", entity.Kind)
	}

	entity, _ = b.UpsertEntity("dolphins", "mammal", 2)
	if entity.Kind != "animal" {
		t.Errorf("expected kind to stay %q, got %q", "animal", entity.Kind)
	}
}

func TestUpsertRelationshipMerge(t *testing.T) {
	b := NewBoard()

	first, err := b.UpsertRelationship("A", "B", "linked to", 0)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := b.UpsertRelationship("B", "A", "Linked To", 1)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first != second {
		t.Error("expected both upserts to merge into one relationship")
	}
	if b.RelationshipCount() != 1 {
		t.Errorf("expected 1 relationship, got %d", b.RelationshipCount())
	}
	if second.Weight != 2 {
		t.Errorf("expected weight 2, got %d", second.Weight)
	}
	if second.RoundAdded != 0 {
		t.Errorf("expected round added 0, got %d", second.RoundAdded)
	}
	if second.SourceID != "a" || second.TargetID != "b" {
		t.Errorf("expected original direction a -> b, got %s -> %s", second.SourceID, second.TargetID)
	}
}

func TestUpsertRelationshipAutoCreatesEntities(t *testing.T) {
	b := NewBoard()

	if _, err := b.UpsertRelationship("Dolphins", "the Pyramids", "built by", 2); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if b.EntityCount() != 2 {
		t.Fatalf("expected 2 entities, got %d", b.EntityCount())
	}
	snap := b.Snapshot()
	for _, entity := range snap.Entities {
		if entity.FirstSeenRound != 2 {
			t.Errorf("entity %s first seen round = %d, want 2", entity.ID, entity.FirstSeenRound)
		}
	}
}

func TestUpsertRelationshipSelfLoop(t *testing.T) {
	b := NewBoard()

	_, err := b.UpsertRelationship("A", "a", "conspires with", 0)
	if !errors.Is(err, common.ErrSelfLoop) {
		t.Fatalf("error = %v, want ErrSelfLoop", err)
	}
	if b.RelationshipCount() != 0 {
		t.Error("self-loop must not create a relationship")
	}
	if b.EntityCount() != 0 {
		t.Error("rejected self-loop must not create entities")
	}
}

func TestSnapshotInsertionOrder(t *testing.T) {
	b := NewBoard()

	labels := []string{"Charlie", "Alpha", "Bravo"}
	for _, label := range labels {
		if _, err := b.UpsertEntity(label, "", 0); err != nil {
			t.Fatalf("upsert %q failed: %v", label, err)
		}
	}
	b.UpsertRelationship("Charlie", "Alpha", "knows", 0)
	b.UpsertRelationship("Bravo", "Charlie", "funds", 1)

	snap := b.Snapshot()

	wantIDs := []string{"charlie", "alpha", "bravo"}
	for i, want := range wantIDs {
		if snap.Entities[i].ID != want {
			t.Errorf("entity[%d] = %s, want %s", i, snap.Entities[i].ID, want)
		}
	}
	if snap.Relationships[0].Description != "knows" || snap.Relationships[1].Description != "funds" {
		t.Error("relationships not in insertion order")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	b := NewBoard()
	b.UpsertEntity("Dolphins", "", 0)
	b.AttachNote("seen near the docks")

	snap := b.Snapshot()
	snap.Entities[0].Label = "mutated"
	snap.Entities[0].Notes[0] = "mutated"

	fresh := b.Snapshot()
	if fresh.Entities[0].Label != "Dolphins" {
		t.Error("snapshot mutation leaked into the board")
	}
	if fresh.Entities[0].Notes[0] != "seen near the docks" {
		t.Error("note mutation leaked into the board")
	}
}

func TestAttachNote(t *testing.T) {
	t.Run("attaches to most recently touched entity", func(t *testing.T) {
		b := NewBoard()
		b.UpsertEntity("Dolphins", "", 0)
		b.UpsertEntity("the Pyramids", "", 0)
		b.AttachNote("limestone residue")

		snap := b.Snapshot()
		if len(snap.Entities[1].Notes) != 1 {
			t.Fatal("expected note on the last touched entity")
		}
		if len(snap.Notes) != 0 {
			t.Error("expected no board-level notes")
		}
	})

	t.Run("falls back to board after touch reset", func(t *testing.T) {
		b := NewBoard()
		b.UpsertEntity("Dolphins", "", 0)
		b.ResetTouch()
		b.AttachNote("something is off")

		snap := b.Snapshot()
		if len(snap.Notes) != 1 {
			t.Fatal("expected a board-level note")
		}
		if len(snap.Entities[0].Notes) != 0 {
			t.Error("expected no entity notes after touch reset")
		}
	})
}

func TestPairKeyOrderInvariance(t *testing.T) {
	if PairKey("a", "b", "Linked To") != PairKey("b", "a", "linked  to") {
		t.Error("pair key must be order and case invariant")
	}
	if PairKey("a", "b", "linked to") == PairKey("a", "b", "funds") {
		t.Error("different descriptions must produce different keys")
	}
}
