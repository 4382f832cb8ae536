package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// sweepLockName is the distributed lock guarding the refresh sweep.
const sweepLockName = "token-refresh-sweep"

const lockReleaseTimeout = 5 * time.Second

// Scheduler runs the token refresh sweep on a fixed interval.
// It runs on worker nodes.
//
// For multi-worker deployments, configure a DistributedLock so only one
// instance sweeps per interval.
type Scheduler struct {
	sweeper driving.TokenRefreshService
	lock    driven.DistributedLock
	logger  *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	last     *domain.SweepReport

	// Lock configuration
	lockTTL      time.Duration
	lockOptional bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Sweeper      driving.TokenRefreshService
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger       *slog.Logger
	Interval     time.Duration // How often to sweep (default: 1h)
	LockTTL      time.Duration // TTL for the distributed lock, refreshed every third of it (default: 10m)
	LockOptional bool          // Sweep anyway when the lock backend errors. Only safe with a single worker.
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 10 * time.Minute
	}

	return &Scheduler{
		sweeper:      cfg.Sweeper,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		lockTTL:      lockTTL,
		lockOptional: cfg.LockOptional,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "interval", s.interval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for the scheduler to finish
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastReport returns the report of the most recent sweep, or nil.
func (s *Scheduler) LastReport() *domain.SweepReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep if this instance wins the lock.
// Returns the report, or nil if the sweep was skipped or failed.
func (s *Scheduler) RunOnce(ctx context.Context) *domain.SweepReport {
	if s.lock != nil {
		lease, err := s.lock.TryLock(ctx, sweepLockName, s.lockTTL)
		switch {
		case err != nil && !s.lockOptional:
			s.logger.Warn("failed to acquire sweep lock, skipping cycle", "error", err)
			return nil
		case err != nil:
			s.logger.Warn("failed to acquire sweep lock, sweeping unlocked", "error", err)
		case lease == nil:
			s.logger.Debug("sweep lock held by another instance, skipping cycle")
			return nil
		default:
			var stop func()
			ctx, stop = s.hold(ctx, lease)
			defer stop()
		}
	}

	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("token refresh sweep failed", "error", err)
		return nil
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report
}

// hold keeps lease alive while the sweep runs. The returned context is
// cancelled if the lease is lost, so the sweep stops before another
// instance starts refreshing the same credentials. stop releases the lease.
func (s *Scheduler) hold(ctx context.Context, lease driven.Lease) (context.Context, func()) {
	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				err := lease.Refresh(sweepCtx, s.lockTTL)
				if err == nil {
					continue
				}
				if errors.Is(err, domain.ErrLockLost) {
					s.logger.Warn("sweep lock lost, stopping sweep")
					cancel()
					return
				}
				// A transient backend error keeps the lease until its TTL runs out.
				s.logger.Warn("failed to refresh sweep lock", "error", err)
			}
		}
	}()

	stop := func() {
		close(done)
		wg.Wait()
		cancel()
		releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancelRelease()
		if err := lease.Release(releaseCtx); err != nil {
			s.logger.Warn("failed to release sweep lock", "error", err)
		}
	}
	return sweepCtx, stop
}
