// Package job provides background job schedulers.
package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"feed-engine-service/internal/infra/cache"
	"feed-engine-service/pkg/locker"
)

// Sweeper periodically deletes cache entries too old to serve even as a
// stale fallback. A distributed lock ensures only one instance sweeps per
// interval.
type Sweeper struct {
	cache    *cache.Cache
	interval time.Duration
	timeout  time.Duration
	grace    int
	logger   *zap.Logger
	locker   locker.DistributedLocker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	Interval time.Duration
	Timeout  time.Duration

	// GraceMultiple scales each entry's TTL into its deletion horizon.
	// Entries younger than GraceMultiple times their TTL stay available
	// for the stale-on-error fallback.
	GraceMultiple int

	OnStartup bool
}

// NewSweeper creates a cache sweeper.
func NewSweeper(
	c *cache.Cache,
	cfg SweeperConfig,
	logger *zap.Logger,
	locker locker.DistributedLocker,
) *Sweeper {
	return &Sweeper{
		cache:    c,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		grace:    cfg.GraceMultiple,
		logger:   logger,
		locker:   locker,
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(runOnStartup bool) {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("starting cache sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("grace_multiple", s.grace),
		zap.Bool("run_on_startup", runOnStartup),
	)

	s.wg.Add(1)
	go s.run(runOnStartup)
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("cache sweeper stopped")
}

func (s *Sweeper) run(runOnStartup bool) {
	defer s.wg.Done()

	if runOnStartup {
		s.sweep()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one pass under the distributed lock. The lock TTL equals the
// interval: on success it is left to expire as a cooldown, on failure it is
// released so another instance can retry without waiting a full interval.
func (s *Sweeper) sweep() {
	const lockKey = "cache:sweeper:lock"

	held, err := s.locker.Acquire(s.ctx, lockKey, s.interval)
	if err != nil {
		s.logger.Error("failed to acquire sweep lock", zap.Error(err))

		return
	}
	if !held {
		s.logger.Debug("another instance is sweeping, skipping")

		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	deleted, err := s.cache.SweepExpired(ctx, s.grace)
	if err != nil {
		if relErr := s.locker.Release(s.ctx, lockKey); relErr != nil {
			s.logger.Error("failed to release sweep lock after error", zap.Error(relErr))
		}
		s.logger.Warn("cache sweep failed, lock released for retry", zap.Error(err))

		return
	}

	s.logger.Info("cache sweep completed",
		zap.Int("deleted", deleted),
		zap.Duration("cooldown", s.interval),
	)
}
