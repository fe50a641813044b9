package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/voteboard/voteboard/internal/domain"
)

var _ domain.VoteDequeuer = (*Consumer)(nil)

// Consumer drains the vote queue with a blocking pop. The poll timeout exists
// purely so the worker loop can observe shutdown between items; it does not
// drop events.
type Consumer struct {
	rdb         *goredis.Client
	pollTimeout time.Duration
}

func NewConsumer(rdb *goredis.Client, pollTimeout time.Duration) *Consumer {
	return &Consumer{rdb: rdb, pollTimeout: pollTimeout}
}

// Dequeue blocks for at most the poll timeout. It returns (payload, true, nil)
// on an item, (nil, false, nil) when the wait elapsed with an empty queue, and
// a non-nil error on a queue connection problem.
func (c *Consumer) Dequeue(ctx context.Context) ([]byte, bool, error) {
	result, err := c.rdb.BLPop(ctx, c.pollTimeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to pop from vote queue: %w", err)
	}

	// BLPOP returns [key, value].
	if len(result) != 2 {
		return nil, false, fmt.Errorf("unexpected BLPOP reply length %d", len(result))
	}

	return []byte(result[1]), true, nil
}

func (c *Consumer) Close() error {
	return c.rdb.Close()
}
