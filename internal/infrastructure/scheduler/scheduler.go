// Package scheduler drives periodic full syncs of every connected
// storefront.
package scheduler

import (
	"context"
	"time"

	"storepulse-shopify-core/internal/application"

	"github.com/rs/zerolog"
)

const defaultInterval = 30 * time.Minute

// Scheduler runs the batch sync on a fixed interval. Per-store concurrency
// and failure isolation live inside the sync service; the scheduler only
// owns the cadence.
type Scheduler struct {
	sync     *application.SyncService
	logger   zerolog.Logger
	interval time.Duration
}

// NewScheduler creates a scheduler; a non-positive interval falls back to
// 30 minutes.
func NewScheduler(sync *application.SyncService, logger zerolog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		sync:     sync,
		logger:   logger,
		interval: interval,
	}
}

// Start runs one batch immediately, then on every tick until ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Sync scheduler started")

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sync scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.sync.SyncAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Batch sync cycle failed")
		return
	}
	s.logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Dur("duration", result.Duration).
		Msg("Batch sync cycle completed")
}
