package common

// Entity represents a node on the board. An entity can be a person, place,
// organization, or any other concept named by extracted text. The Kind field
// is advisory only and never participates in identity.
//
// Entity IDs are derived deterministically from the normalized display label,
// so the same real-world thing maps to the same ID across rounds.
type Entity struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Kind           string   `json:"kind"`
	FirstSeenRound int      `json:"first_seen_round"`
	MentionCount   int      `json:"mention_count"`
	Notes          []string `json:"notes,omitempty"`
}

// Relationship represents a weighted edge between two entities with a
// free-text description of the connection.
//
// Relationships keep their original direction for display, but merge
// identity treats the endpoint pair as unordered: the same connection
// reported in either direction reinforces one edge, incrementing Weight.
type Relationship struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	RoundAdded  int    `json:"round_added"`
}

// Extraction is one subject-description-object tuple produced by the
// extraction provider. Kind is optional and applies to the subject.
type Extraction struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Object      string `json:"object"`
	Kind        string `json:"kind,omitempty"`
}

// RoundResult summarizes one completed round: what was added, how the
// intensity moved, and a short deterministic digest used as the evidence
// log entry for future rounds.
type RoundResult struct {
	RoundNumber          int     `json:"round_number"`
	EntitiesAdded        int     `json:"entities_added"`
	RelationshipsTouched int     `json:"relationships_touched"`
	Skipped              int     `json:"skipped"`
	IntensityAfter       float64 `json:"intensity_after"`
	SummaryText          string  `json:"summary_text"`
}

// Snapshot is a read-only export of the board for persistence and
// visualization. Ordering is insertion order.
type Snapshot struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Notes         []string       `json:"notes,omitempty"`
}

// Finding is one append-only evidence log entry.
type Finding struct {
	ID      string `json:"id"`
	Round   int    `json:"round"`
	Summary string `json:"summary"`
}
