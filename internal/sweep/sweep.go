// Package sweep periodically completes reservations whose slot has ended.
package sweep

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/apperr"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Lifecycle is the subset of the booking service the sweeper drives.
type Lifecycle interface {
	ListElapsed(ctx context.Context, limit int) ([]models.Reservation, error)
	Complete(ctx context.Context, reservationID string, actor models.Actor) (*models.Reservation, error)
}

// Counter records completed reservations.
type Counter interface {
	AddSweepCompleted(n int)
}

// Stats summarises one run.
type Stats struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
}

// Completer runs the sweep on a ticker.
type Completer struct {
	lifecycle Lifecycle
	interval  time.Duration
	limit     int
	counter   Counter
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewCompleter creates a sweeper that completes up to limit reservations every interval.
func NewCompleter(lifecycle Lifecycle, interval time.Duration, limit int, counter Counter, logger *zerolog.Logger) *Completer {
	return &Completer{
		lifecycle: lifecycle,
		interval:  interval,
		limit:     limit,
		counter:   counter,
		logger:    logger.With().Str("component", "sweep").Logger(),
	}
}

// Start blocks until ctx is done or Stop is called. A stopped sweeper can be started again.
func (c *Completer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	stop := make(chan struct{})
	c.stopCh = stop
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.stopCh == stop {
			c.running = false
		}
		c.mu.Unlock()
	}()

	c.logger.Info().Dur("interval", c.interval).Int("limit", c.limit).Msg("sweeper started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("sweeper stopped by context")
			return
		case <-stop:
			c.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// Stop stops a running sweeper.
func (c *Completer) Stop() {
	c.mu.Lock()
	if c.running {
		c.running = false
		close(c.stopCh)
	}
	c.mu.Unlock()
}

// RunOnce completes every elapsed reservation found in one batch.
func (c *Completer) RunOnce(ctx context.Context) Stats {
	start := time.Now()
	var stats Stats

	elapsed, err := c.lifecycle.ListElapsed(ctx, c.limit)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to list elapsed reservations")
		return stats
	}
	stats.Total = len(elapsed)

	for i := range elapsed {
		if ctx.Err() != nil {
			c.logger.Info().Int("processed", stats.Completed+stats.Skipped+stats.Failed).Msg("sweep interrupted")
			break
		}

		r := &elapsed[i]
		_, err := c.lifecycle.Complete(ctx, r.ID, models.SystemActor)
		switch {
		case err == nil:
			stats.Completed++
		case apperr.IsRetryable(err), apperr.KindOf(err) == apperr.KindState:
			// Changed concurrently; the next run sees the new state.
			stats.Skipped++
			c.logger.Debug().Err(err).Str("reservation_id", r.ID).Msg("reservation skipped")
		default:
			stats.Failed++
			c.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("failed to complete reservation")
		}
	}

	if c.counter != nil && stats.Completed > 0 {
		c.counter.AddSweepCompleted(stats.Completed)
	}
	if stats.Total > 0 {
		c.logger.Info().
			Int("total", stats.Total).
			Int("completed", stats.Completed).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Dur("duration", time.Since(start)).
			Msg("sweep finished")
	}
	return stats
}

// IsRunning reports whether Start is active.
func (c *Completer) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
