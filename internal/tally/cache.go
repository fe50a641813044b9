// Package tally maintains the shared aggregate snapshot. A single refresh
// loop recomputes the tally wholesale from storage on a fixed interval; any
// number of readers observe the latest complete snapshot without blocking.
package tally

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/voteboard/voteboard/internal/domain"
	"github.com/voteboard/voteboard/internal/metrics"
)

const refreshTimeout = 5 * time.Second

// CountSource is where the cache recomputes its snapshot from.
type CountSource interface {
	CountByChoice(ctx context.Context) (domain.Tally, error)
}

// Cache holds the latest complete tally. Single writer (the Run loop), many
// readers; the lock is held only for the value swap, never for a query.
type Cache struct {
	source   CountSource
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.RWMutex
	current domain.Tally
}

var _ domain.TallyReader = (*Cache)(nil)

func NewCache(source CountSource, interval time.Duration, clock clockwork.Clock) *Cache {
	return &Cache{
		source:   source,
		clock:    clock,
		interval: interval,
	}
}

// Current returns the latest complete snapshot. It never blocks on a refresh
// in progress; before the first successful refresh it returns a zero tally.
func (c *Cache) Current() domain.Tally {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Refresh recomputes the snapshot once. On a storage error the previous
// snapshot is retained: stale-but-available beats serving an error.
func (c *Cache) Refresh(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	tally, err := c.source.CountByChoice(queryCtx)
	if err != nil {
		metrics.TallyRefreshFailuresTotal.Inc()
		slog.Warn("Tally refresh failed, keeping previous snapshot", "error", err)
		return err
	}

	c.mu.Lock()
	c.current = tally
	c.mu.Unlock()
	return nil
}

// Run refreshes on the configured interval until ctx is cancelled. An initial
// refresh runs immediately so viewers connected before the first tick still
// see real data.
func (c *Cache) Run(ctx context.Context) {
	_ = c.Refresh(ctx)

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_ = c.Refresh(ctx)
		}
	}
}
