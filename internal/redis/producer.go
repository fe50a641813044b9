package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/voteboard/voteboard/internal/domain"
	"github.com/voteboard/voteboard/internal/metrics"
)

// queueKey is the Redis list holding pending vote events.
const queueKey = "votes"

var _ domain.VoteQueue = (*Producer)(nil)

// Producer appends vote events to the tail of the queue. Enqueue is
// fire-and-forget from the caller's perspective: success means the event is
// queued, not processed.
type Producer struct {
	rdb *goredis.Client
}

func NewProducer(rdb *goredis.Client) *Producer {
	return &Producer{rdb: rdb}
}

func (p *Producer) Enqueue(ctx context.Context, event domain.VoteEvent) error {
	payload, err := EncodeVoteEvent(event)
	if err != nil {
		return err
	}

	if err := p.rdb.RPush(ctx, queueKey, payload).Err(); err != nil {
		metrics.EnqueueFailuresTotal.Inc()
		return fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	metrics.VotesEnqueuedTotal.WithLabelValues(string(event.Choice)).Inc()
	return nil
}
