package inventory

import (
	"context"
	"log/slog"
	"time"
)

type expiredSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically deletes expired reservations. Availability already
// ignores them, so a missed tick only delays cleanup.
type Sweeper struct {
	store    expiredSweeper
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(store expiredSweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reservation sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	removed, err := s.store.SweepExpired(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to sweep expired reservations", "error", err)
		}
		return 0
	}
	if removed > 0 {
		s.logger.Info("expired reservations swept", "count", removed)
	}
	return removed
}
