package persistence

import (
	"context"
	"time"

	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// Sweeper periodically purges revocation records whose token has naturally expired.
type Sweeper struct {
	store    service.RevocationStore
	interval time.Duration
	clock    clock.Clock
	metrics  service.Metrics
	logger   logger.Logger
}

// NewSweeper creates a sweeper for store. Stores that do not implement
// service.RevocationSweeper make Run return immediately.
func NewSweeper(store service.RevocationStore, interval time.Duration, clk clock.Clock, metrics service.Metrics, log logger.Logger) *Sweeper {
	if clk == nil {
		clk = clock.System()
	}
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    clk,
		metrics:  metrics,
		logger:   log.WithComponent("revocation_sweeper"),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	sweeper, ok := s.store.(service.RevocationSweeper)
	if !ok || s.interval <= 0 {
		s.logger.Debug(ctx, "revocation sweeper disabled", logger.String("backend", s.store.Name()))
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx, sweeper)
		}
	}
}

// SweepOnce runs a single pass and returns the number of removed records.
func (s *Sweeper) SweepOnce(ctx context.Context, sweeper service.RevocationSweeper) int64 {
	removed, err := sweeper.Sweep(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error(ctx, "revocation sweep failed", err, logger.String("backend", s.store.Name()))
		return 0
	}
	s.metrics.RecordRevocationSweep(s.store.Name(), removed)
	if removed > 0 {
		s.logger.Info(ctx, "expired revocations purged",
			logger.String("backend", s.store.Name()),
			logger.Int64("removed", removed),
		)
	}
	return removed
}
