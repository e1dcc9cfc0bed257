package graph

import "strings"

// NormalizeLabel case-folds a display label, trims it, and collapses internal
// whitespace. The result doubles as the entity ID, which is what makes merge
// identity deterministic across rounds: "The Pyramids" and "  the pyramids "
// both map to "the pyramids".
//
// Two distinct real-world things sharing a normalized label collapse into one
// entity. That collision is an accepted heuristic, not a bug.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// PairKey builds the merge-identity key for a relationship: the unordered
// endpoint pair in sorted ID order plus the normalized description.
func PairKey(sourceID, targetID, description string) string {
	a, b := sourceID, targetID
	if b < a {
		a, b = b, a
	}
	return a + "|" + b + "|" + NormalizeLabel(description)
}
