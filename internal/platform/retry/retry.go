// Package retry provides bounded retry with a fixed inter-attempt delay,
// used for establishing the queue and storage connections at startup.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	OnRetry     func(attempt int, err error)
}

type Operation[T any] func() (T, error)

// Do runs op up to p.MaxAttempts times, sleeping p.Delay between attempts.
// The clock is injected so tests never sleep for real. The final error is
// wrapped with the attempt count.
func Do[T any](ctx context.Context, clock clockwork.Clock, p Policy, op Operation[T]) (T, error) {
	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		if attempt >= p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		select {
		case <-clock.After(p.Delay):
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// DoVoid is Do for operations without a return value.
func DoVoid(ctx context.Context, clock clockwork.Clock, p Policy, op func() error) error {
	_, err := Do(ctx, clock, p, func() (struct{}, error) { return struct{}{}, op() })
	return err
}
