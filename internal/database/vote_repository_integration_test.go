package database

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voteboard/voteboard/internal/domain"
)

func TestVoteRepo_UpsertVote_InsertsThenOverwrites(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewVoteRepo(pool, clockwork.NewRealClock())
	ctx := context.Background()

	require.NoError(t, repo.UpsertVote(ctx, domain.VoteEvent{VoterID: "x1", Choice: domain.ChoiceA}))
	require.NoError(t, repo.UpsertVote(ctx, domain.VoteEvent{VoterID: "x1", Choice: domain.ChoiceB}))

	var vote string
	var rowCount int
	require.NoError(t, pool.QueryRow(ctx, "SELECT vote FROM votes WHERE id = 'x1'").Scan(&vote))
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM votes").Scan(&rowCount))

	assert.Equal(t, "b", vote)
	assert.Equal(t, 1, rowCount, "resubmission must update, not duplicate")

	tally, err := repo.CountByChoice(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{CountA: 0, CountB: 1, Total: 1}, tally)
}

func TestVoteRepo_UpsertVote_Idempotent(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewVoteRepo(pool, clockwork.NewRealClock())
	ctx := context.Background()

	event := domain.VoteEvent{VoterID: "x2", Choice: domain.ChoiceA}
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.UpsertVote(ctx, event))
	}

	tally, err := repo.CountByChoice(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{CountA: 1, CountB: 0, Total: 1}, tally, "redelivery must never double count")
}

func TestVoteRepo_CountByChoice_EmptyTable(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewVoteRepo(pool, clockwork.NewRealClock())

	tally, err := repo.CountByChoice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{}, tally)
}

func TestVoteRepo_CountByChoice_GroupsPerChoice(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewVoteRepo(pool, clockwork.NewRealClock())
	ctx := context.Background()

	events := []domain.VoteEvent{
		{VoterID: "v1", Choice: domain.ChoiceA},
		{VoterID: "v2", Choice: domain.ChoiceA},
		{VoterID: "v3", Choice: domain.ChoiceB},
	}
	for _, e := range events {
		require.NoError(t, repo.UpsertVote(ctx, e))
	}

	tally, err := repo.CountByChoice(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{CountA: 2, CountB: 1, Total: 3}, tally)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := setupTestPool(t)
	require.NoError(t, RunMigrations(context.Background(), pool))
}
