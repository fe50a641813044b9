// Package worker implements the vote processing loop: drain the durable
// queue, decode each event, and apply it to storage as an idempotent upsert.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/domain"
	"github.com/voteboard/voteboard/internal/metrics"
	"github.com/voteboard/voteboard/internal/platform/correlation"
	"github.com/voteboard/voteboard/internal/platform/retry"
	"github.com/voteboard/voteboard/internal/redis"
)

// Queue is the worker's view of the vote queue connection.
type Queue interface {
	Dequeue(ctx context.Context) (payload []byte, ok bool, err error)
	Close() error
}

// Store is the worker's view of the storage connection. Migrate must be
// idempotent; it runs at every startup.
type Store interface {
	UpsertVote(ctx context.Context, event domain.VoteEvent) error
	Migrate(ctx context.Context) error
	Close()
}

type Config struct {
	ConnectAttempts int
	ConnectBackoff  time.Duration
	ReconnectPause  time.Duration
}

// Worker owns one queue connection and one storage connection. Connection
// loss at startup is fatal once the retry budget is exhausted; connection
// loss mid-run triggers reconnect-and-continue.
type Worker struct {
	connectQueue func(ctx context.Context) (Queue, error)
	connectStore func(ctx context.Context) (Store, error)
	cfg          Config
	clock        clockwork.Clock

	queue Queue
	store Store
}

func New(
	connectQueue func(ctx context.Context) (Queue, error),
	connectStore func(ctx context.Context) (Store, error),
	cfg Config,
	clock clockwork.Clock,
) *Worker {
	return &Worker{
		connectQueue: connectQueue,
		connectStore: connectStore,
		cfg:          cfg,
		clock:        clock,
	}
}

// Run connects, migrates, and drains the queue until ctx is cancelled.
// It returns a non-nil error only for startup failures.
func (w *Worker) Run(ctx context.Context) error {
	var err error

	w.queue, err = retry.Do(ctx, w.clock, w.connectPolicy("queue"), func() (Queue, error) {
		return w.connectQueue(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to vote queue: %w", err)
	}

	w.store, err = retry.Do(ctx, w.clock, w.connectPolicy("storage"), func() (Store, error) {
		return w.connectStore(ctx)
	})
	if err != nil {
		_ = w.queue.Close()
		return fmt.Errorf("failed to connect to vote storage: %w", err)
	}

	if err := w.store.Migrate(ctx); err != nil {
		w.shutdown()
		return fmt.Errorf("failed to initialize vote schema: %w", err)
	}

	slog.Info("Worker ready, waiting for votes")

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		default:
		}

		payload, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.shutdown()
				return nil
			}
			slog.Warn("Queue connection error", "error", err)
			metrics.WorkerReconnectsTotal.WithLabelValues("queue").Inc()
			w.reconnectQueue(ctx)
			continue
		}
		if !ok {
			// Poll timeout with an empty queue; loop back to check shutdown.
			continue
		}

		w.process(ctx, payload)
	}
}

func (w *Worker) process(ctx context.Context, payload []byte) {
	procCtx := correlation.WithID(ctx, correlation.NewID())

	event, err := redis.DecodeVoteEvent(payload)
	if err != nil {
		slog.WarnContext(procCtx, "Discarding malformed vote payload", "error", err)
		metrics.WorkerMalformedPayloadsTotal.Inc()
		return
	}

	if err := w.store.UpsertVote(procCtx, event); err != nil {
		if ctx.Err() != nil {
			return
		}
		// The in-flight event is dropped for this attempt; at-least-once
		// relies on the queue's redelivery, not on re-enqueuing here.
		slog.WarnContext(procCtx, "Storage connection error", "error", err)
		metrics.WorkerReconnectsTotal.WithLabelValues("storage").Inc()
		w.reconnectStore(ctx)
		return
	}

	metrics.WorkerVotesProcessedTotal.Inc()
	slog.InfoContext(procCtx, "Processed vote", "voter_id", event.VoterID, "vote", string(event.Choice))
}

func (w *Worker) reconnectQueue(ctx context.Context) {
	if !w.pause(ctx) {
		return
	}

	queue, err := retry.Do(ctx, w.clock, w.connectPolicy("queue"), func() (Queue, error) {
		return w.connectQueue(ctx)
	})
	if err != nil {
		slog.Error("Queue reconnect failed, keeping current connection", "error", err)
		return
	}

	_ = w.queue.Close()
	w.queue = queue
	slog.Info("Queue connection reestablished")
}

func (w *Worker) reconnectStore(ctx context.Context) {
	if !w.pause(ctx) {
		return
	}

	store, err := retry.Do(ctx, w.clock, w.connectPolicy("storage"), func() (Store, error) {
		return w.connectStore(ctx)
	})
	if err != nil {
		slog.Error("Storage reconnect failed, keeping current connection", "error", err)
		return
	}

	w.store.Close()
	w.store = store
	slog.Info("Storage connection reestablished")
}

// pause sleeps for the reconnect pause, returning false if ctx was cancelled.
func (w *Worker) pause(ctx context.Context) bool {
	select {
	case <-w.clock.After(w.cfg.ReconnectPause):
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) connectPolicy(target string) retry.Policy {
	return retry.Policy{
		MaxAttempts: w.cfg.ConnectAttempts,
		Delay:       w.cfg.ConnectBackoff,
		OnRetry: func(attempt int, err error) {
			slog.Warn("Connection attempt failed",
				"target", target,
				"attempt", attempt,
				"max_attempts", w.cfg.ConnectAttempts,
				"error", err,
			)
		},
	}
}

func (w *Worker) shutdown() {
	slog.Info("Worker shutting down")
	if w.queue != nil {
		_ = w.queue.Close()
	}
	if w.store != nil {
		w.store.Close()
	}
	slog.Info("Worker shutdown complete")
}
