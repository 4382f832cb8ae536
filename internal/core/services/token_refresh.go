package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Ensure tokenRefreshService implements TokenRefreshService
var _ driving.TokenRefreshService = (*tokenRefreshService)(nil)

const (
	// DefaultRefreshConcurrency bounds parallel refresh calls.
	DefaultRefreshConcurrency = 4

	// DefaultRefreshTimeout bounds a single credential's refresh.
	DefaultRefreshTimeout = 30 * time.Second
)

// TokenRefreshServiceConfig holds configuration for the refresh sweep.
type TokenRefreshServiceConfig struct {
	Store           driven.CredentialStore
	States          driven.OAuthStateStore
	Providers       driven.ProviderRegistry
	PlatformConfigs driven.PlatformConfigStore
	AuditLog        driven.AuditLog // Optional

	Window      time.Duration // Refresh tokens expiring within this window (default: 24h)
	Concurrency int           // Parallel refreshes (default: 4)
	Timeout     time.Duration // Per-credential timeout (default: 30s)

	Logger *slog.Logger
}

// tokenRefreshService implements the TokenRefreshService interface.
type tokenRefreshService struct {
	store       driven.CredentialStore
	states      driven.OAuthStateStore
	renewer     *renewer
	window      time.Duration
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewTokenRefreshService creates a new refresh sweep service.
func NewTokenRefreshService(cfg TokenRefreshServiceConfig) driving.TokenRefreshService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.Window
	if window == 0 {
		window = DefaultRefreshWindow
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultRefreshConcurrency
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRefreshTimeout
	}

	return &tokenRefreshService{
		store:  cfg.Store,
		states: cfg.States,
		renewer: &renewer{
			store:     cfg.Store,
			providers: cfg.Providers,
			configs:   cfg.PlatformConfigs,
			audit:     auditor{log: cfg.AuditLog, logger: logger},
			logger:    logger,
			now:       time.Now,
		},
		window:      window,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Sweep refreshes every connected credential inside the refresh window, then
// deletes expired OAuth states. Per-credential failures are counted, not returned.
// An error is returned only when the credential listing itself fails.
func (s *tokenRefreshService) Sweep(ctx context.Context) (*domain.SweepReport, error) {
	start := s.now()
	report := &domain.SweepReport{StartedAt: start}

	due, err := s.store.ListExpiring(ctx, start.Add(s.window))
	if err != nil {
		return nil, fmt.Errorf("list expiring credentials: %w", err)
	}
	report.TokenRefresh.Total = len(due)

	var (
		mu     sync.Mutex
		errs   error
		failed int
	)

	// Workers never return an error so one failure cannot cancel the rest.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, creds := range due {
		g.Go(func() error {
			if err := s.refreshOne(gctx, creds); err != nil {
				mu.Lock()
				failed++
				errs = multierr.Append(errs, fmt.Errorf("%s/%s: %w", creds.WorkspaceID, creds.Platform, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	report.TokenRefresh.Failed = failed
	report.TokenRefresh.Successful = report.TokenRefresh.Total - failed

	if errs != nil {
		s.logger.Warn("token refresh sweep had failures",
			"failed", failed,
			"total", report.TokenRefresh.Total,
			"error", errs,
		)
	}

	if s.states != nil {
		cleaned, err := s.states.CleanupExpired(ctx)
		if err != nil {
			s.logger.Error("oauth state cleanup failed", "error", err)
		} else {
			report.OAuthStateCleanup.Cleaned = cleaned
		}
	}

	report.Duration = s.now().Sub(start)
	s.logger.Info("token refresh sweep finished",
		"total", report.TokenRefresh.Total,
		"successful", report.TokenRefresh.Successful,
		"failed", report.TokenRefresh.Failed,
		"states_cleaned", report.OAuthStateCleanup.Cleaned,
		"duration", report.Duration,
	)
	return report, nil
}

// refreshOne renews a single credential under its own timeout.
func (s *tokenRefreshService) refreshOne(ctx context.Context, creds *domain.PlatformCredentials) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrRefreshFailed, r)
		}
	}()

	_, err = s.renewer.renew(ctx, creds, domain.SystemUserID)
	if errors.Is(err, domain.ErrRefreshUnavailable) {
		// Nothing to call; flag it so the health check surfaces the reconnect.
		if recErr := s.store.RecordRefreshFailure(ctx, creds.WorkspaceID, creds.Platform, err.Error()); recErr != nil {
			s.logger.Error("failed to record refresh failure", "platform", creds.Platform, "error", recErr)
		}
	}
	return err
}
