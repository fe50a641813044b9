package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/domain"
	"github.com/voteboard/voteboard/internal/metrics"
)

// VoteRepo persists one row per voter. The upsert is last-write-wins: the
// stored choice reflects the most recently processed event for that voter,
// which makes reprocessing after redelivery harmless.
type VoteRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

var _ domain.VoteRepository = (*VoteRepo)(nil)

func NewVoteRepo(pool *pgxpool.Pool, clock clockwork.Clock) *VoteRepo {
	return &VoteRepo{pool: pool, clock: clock}
}

// Migrate creates the vote schema if it is absent.
func (r *VoteRepo) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, r.pool)
}

// UpsertVote inserts a new voter record or overwrites the existing one's
// choice. A single atomic statement; reapplying the same event N times leaves
// the same final state as applying it once.
func (r *VoteRepo) UpsertVote(ctx context.Context, event domain.VoteEvent) error {
	start := r.clock.Now()
	defer func() {
		metrics.WorkerUpsertDuration.Observe(r.clock.Since(start).Seconds())
	}()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO votes (id, vote, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id)
		DO UPDATE SET vote = EXCLUDED.vote, updated_at = NOW()
	`, event.VoterID, string(event.Choice))
	if err != nil {
		return fmt.Errorf("failed to upsert vote for voter %s: %w", event.VoterID, err)
	}
	return nil
}

// CountByChoice recomputes the aggregate tally wholesale. An empty table
// yields a zero tally, not an error.
func (r *VoteRepo) CountByChoice(ctx context.Context) (domain.Tally, error) {
	start := r.clock.Now()
	defer func() {
		metrics.TallyRefreshDuration.Observe(r.clock.Since(start).Seconds())
	}()

	rows, err := r.pool.Query(ctx, `SELECT vote, COUNT(*) FROM votes GROUP BY vote`)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	var countA, countB int64
	for rows.Next() {
		var vote string
		var count int64
		if err := rows.Scan(&vote, &count); err != nil {
			return domain.Tally{}, fmt.Errorf("failed to scan vote count: %w", err)
		}
		switch domain.Choice(vote) {
		case domain.ChoiceA:
			countA = count
		case domain.ChoiceB:
			countB = count
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Tally{}, fmt.Errorf("failed to read vote counts: %w", err)
	}

	return domain.NewTally(countA, countB), nil
}

func (r *VoteRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *VoteRepo) Close() {
	r.pool.Close()
}
