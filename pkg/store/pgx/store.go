package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

const saveRetries = 3

// GraphDBStore implements store.GraphStore on PostgreSQL. Entities and
// relationships are upserted with ON CONFLICT so replaying a round is
// idempotent.
type GraphDBStore struct {
	pool *pgxpool.Pool
}

// NewGraphDBStoreParams configures a new GraphDBStore.
//
// DatabaseURL is a postgres:// connection string. MigrationsURL is a
// golang-migrate source URL (e.g. "file://migrations"); when empty,
// migrations are skipped.
type NewGraphDBStoreParams struct {
	DatabaseURL   string
	MigrationsURL string
}

// NewGraphDBStore connects to the database, applies pending migrations, and
// returns a ready store.
func NewGraphDBStore(ctx context.Context, params NewGraphDBStoreParams) (*GraphDBStore, error) {
	if params.MigrationsURL != "" {
		m, err := migrate.New(params.MigrationsURL, params.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: init migrations: %v", common.ErrStorageUnavailable, err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("%w: apply migrations: %v", common.ErrStorageUnavailable, err)
		}
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("[Store] Closing migration handles failed", "src_err", srcErr, "db_err", dbErr)
		}
	}

	pool, err := pgxpool.New(ctx, params.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", common.ErrStorageUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", common.ErrStorageUnavailable, err)
	}

	return &GraphDBStore{pool: pool}, nil
}

// SaveEntities upserts the given entities for a run. Mention counts and
// kinds follow the in-memory board; first_seen_round is kept from the first
// insert.
func (s *GraphDBStore) SaveEntities(ctx context.Context, runID string, entities []common.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	err := util.RetryErrWithContext(ctx, saveRetries, func(ctx context.Context) error {
		batch, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer batch.Rollback(ctx)

		for _, entity := range entities {
			_, err := batch.Exec(ctx, `
				INSERT INTO board_entities (run_id, entity_id, label, kind, first_seen_round, mention_count)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (run_id, entity_id) DO UPDATE
				SET mention_count = EXCLUDED.mention_count,
				    kind = CASE WHEN board_entities.kind = '' THEN EXCLUDED.kind ELSE board_entities.kind END`,
				runID, entity.ID, entity.Label, entity.Kind, entity.FirstSeenRound, entity.MentionCount,
			)
			if err != nil {
				return err
			}
		}

		return batch.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: save entities: %v", common.ErrStorageUnavailable, err)
	}

	return nil
}

// SaveRelationships upserts the given relationships for a run, keyed by the
// unordered endpoint pair plus normalized description.
func (s *GraphDBStore) SaveRelationships(ctx context.Context, runID string, relations []common.Relationship) error {
	if len(relations) == 0 {
		return nil
	}

	err := util.RetryErrWithContext(ctx, saveRetries, func(ctx context.Context) error {
		batch, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer batch.Rollback(ctx)

		for _, rel := range relations {
			_, err := batch.Exec(ctx, `
				INSERT INTO board_relationships (run_id, pair_key, source_id, target_id, description, weight, round_added)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (run_id, pair_key) DO UPDATE
				SET weight = EXCLUDED.weight`,
				runID, pairKey(rel), rel.SourceID, rel.TargetID, rel.Description, rel.Weight, rel.RoundAdded,
			)
			if err != nil {
				return err
			}
		}

		return batch.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: save relationships: %v", common.ErrStorageUnavailable, err)
	}

	return nil
}

// SaveFinding appends one evidence log entry for a run.
func (s *GraphDBStore) SaveFinding(ctx context.Context, runID string, finding common.Finding) error {
	err := util.RetryErrWithContext(ctx, saveRetries, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO board_findings (id, run_id, round, summary)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`,
			finding.ID, runID, finding.Round, finding.Summary,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save finding: %v", common.ErrStorageUnavailable, err)
	}

	return nil
}

// Close releases the connection pool.
func (s *GraphDBStore) Close() {
	s.pool.Close()
}
