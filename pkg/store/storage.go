package store

import (
	"context"

	"github.com/redstring/corkboard/pkg/common"
)

// GraphStore is the optional durable backing for a board. Upserts are keyed
// exactly as the in-memory board keys them: entities by normalized-label ID,
// relationships by unordered endpoint pair plus normalized description.
//
// The engine degrades to pure in-memory operation when no store is
// configured. Implementations surface failures wrapping
// common.ErrStorageUnavailable; whether that is fatal is the caller's
// decision (it is, when durability was explicitly required).
type GraphStore interface {
	SaveEntities(ctx context.Context, runID string, entities []common.Entity) error
	SaveRelationships(ctx context.Context, runID string, relations []common.Relationship) error
	SaveFinding(ctx context.Context, runID string, finding common.Finding) error
	Close()
}
