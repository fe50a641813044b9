package domain

import "context"

// Choice is one of the two canonical vote tokens.
type Choice string

const (
	ChoiceA Choice = "a"
	ChoiceB Choice = "b"
)

// ParseChoice validates a raw vote token. Anything other than the two
// canonical tokens is rejected with ErrInvalidChoice.
func ParseChoice(raw string) (Choice, error) {
	switch Choice(raw) {
	case ChoiceA:
		return ChoiceA, nil
	case ChoiceB:
		return ChoiceB, nil
	default:
		return "", ErrInvalidChoice
	}
}

// VoteEvent is a single vote submission as it travels through the queue.
// The same voter may appear multiple times (resubmission, redelivery);
// persistence is last-write-wins per voter.
type VoteEvent struct {
	VoterID string `json:"voter_id"`
	Choice  Choice `json:"vote"`
}

// Tally is a complete, self-contained aggregate snapshot. Total is always
// CountA + CountB; construct via NewTally to keep the invariant.
type Tally struct {
	CountA int64 `json:"count_a"`
	CountB int64 `json:"count_b"`
	Total  int64 `json:"total"`
}

func NewTally(countA, countB int64) Tally {
	return Tally{CountA: countA, CountB: countB, Total: countA + countB}
}

// VoteQueue is the write side of the durable vote queue.
type VoteQueue interface {
	Enqueue(ctx context.Context, event VoteEvent) error
}

// VoteDequeuer is the read side of the durable vote queue. Dequeue blocks for
// at most the queue's poll timeout; ok is false when the wait elapsed without
// an item. A non-nil error indicates a queue connection problem.
type VoteDequeuer interface {
	Dequeue(ctx context.Context) (payload []byte, ok bool, err error)
	Close() error
}

// VoteRepository persists one record per voter with last-write-wins semantics.
type VoteRepository interface {
	UpsertVote(ctx context.Context, event VoteEvent) error
	CountByChoice(ctx context.Context) (Tally, error)
	Ping(ctx context.Context) error
	Close()
}

// TallyReader exposes the latest complete aggregate snapshot. Current never
// blocks on a refresh in progress.
type TallyReader interface {
	Current() Tally
}
