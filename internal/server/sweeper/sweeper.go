// Package sweeper periodically purges tombstoned files older than the
// retention period.
package sweeper

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/metrics"
)

// Purger removes tombstones older than retention and reports how many.
type Purger interface {
	PurgeDeletedFiles(ctx context.Context, retention time.Duration) (int, error)
}

type Sweeper struct {
	purger    Purger
	retention time.Duration
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    logging.Logger
}

func New(p Purger, retention, interval time.Duration, m *metrics.Metrics, logger logging.Logger) *Sweeper {
	return &Sweeper{
		purger:    p,
		retention: retention,
		interval:  interval,
		metrics:   m,
		logger:    logger.With("module", "sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "retention sweeper started", "interval", s.interval.String(), "retention", s.retention.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single purge pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.purger.PurgeDeletedFiles(ctx, s.retention)
	if err != nil {
		s.logger.Error(ctx, "purge failed", "error", err)
		return
	}
	s.metrics.FilesPurged.Add(float64(n))
	if n > 0 {
		s.logger.Info(ctx, "purged deleted files", "count", n)
	}
}
