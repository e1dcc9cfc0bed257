package pgx

import (
	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/graph"
)

// pairKey mirrors the board's merge-identity key so the durable rows stay
// keyed exactly like the in-memory state.
func pairKey(rel common.Relationship) string {
	return graph.PairKey(rel.SourceID, rel.TargetID, rel.Description)
}
