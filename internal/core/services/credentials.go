package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Ensure credentialService implements CredentialService
var _ driving.CredentialService = (*credentialService)(nil)

// CredentialServiceConfig holds configuration for the credential service.
type CredentialServiceConfig struct {
	Store           driven.CredentialStore
	Providers       driven.ProviderRegistry
	PlatformConfigs driven.PlatformConfigStore
	AuditLog        driven.AuditLog // Optional

	// RefreshWindow is how close to expiry a token is renewed (default: 24h).
	RefreshWindow time.Duration

	Logger *slog.Logger
}

// credentialService implements the CredentialService interface.
type credentialService struct {
	store   driven.CredentialStore
	renewer *renewer
	audit   auditor
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewCredentialService creates a new credential service.
func NewCredentialService(cfg CredentialServiceConfig) driving.CredentialService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.RefreshWindow
	if window == 0 {
		window = DefaultRefreshWindow
	}

	audit := auditor{log: cfg.AuditLog, logger: logger}
	return &credentialService{
		store: cfg.Store,
		renewer: &renewer{
			store:     cfg.Store,
			providers: cfg.Providers,
			configs:   cfg.PlatformConfigs,
			audit:     audit,
			logger:    logger,
			now:       time.Now,
		},
		audit:  audit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the credentials for a platform, or nil if none exist.
func (s *credentialService) Get(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error) {
	if !platform.IsValid() {
		return nil, domain.ErrInvalidPlatform
	}
	creds, err := s.store.Get(ctx, workspaceID, platform)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return creds, nil
}

// Save upserts credentials on behalf of userID.
func (s *credentialService) Save(ctx context.Context, platform domain.Platform, creds *domain.PlatformCredentials, userID, workspaceID string) error {
	if creds == nil {
		return domain.ErrInvalidInput
	}
	creds.Platform = platform
	creds.WorkspaceID = workspaceID
	if creds.ConnectedBy == "" {
		creds.ConnectedBy = userID
	}
	if creds.UpdatedAt.IsZero() {
		creds.UpdatedAt = s.now()
	}
	if err := creds.Validate(); err != nil {
		return err
	}

	if err := s.store.Save(ctx, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Disconnect clears the platform's tokens. Only workspace admins may disconnect.
func (s *credentialService) Disconnect(ctx context.Context, platform domain.Platform, caller *domain.RequestContext) error {
	if !caller.IsAuthenticated() {
		return domain.ErrUnauthorized
	}
	if !caller.HasWorkspace() {
		return domain.ErrNoWorkspace
	}
	if !platform.IsValid() {
		return domain.ErrInvalidPlatform
	}
	if !caller.IsAdmin() {
		return domain.ErrForbidden
	}

	if err := s.store.Disconnect(ctx, caller.WorkspaceID, platform); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotConnected
		}
		return fmt.Errorf("disconnect: %w", err)
	}

	s.audit.record(ctx, callerEvent(caller, platform, domain.AuditPlatformDisconnected, domain.AuditStatusSuccess))
	s.logger.Info("platform disconnected",
		"platform", platform,
		"workspace_id", caller.WorkspaceID,
		"user_id", caller.UserID,
	)
	return nil
}

// VerifyAndRefreshIfNeeded renews the token when it expires inside the refresh window.
// Callers run this before publishing rather than after a failed post.
func (s *credentialService) VerifyAndRefreshIfNeeded(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error) {
	creds, err := s.Get(ctx, workspaceID, platform)
	if err != nil {
		return nil, err
	}
	if creds == nil || !creds.IsConnected || creds.AccessToken == "" {
		return nil, domain.ErrNotConnected
	}

	now := s.now()
	if !creds.ExpiresWithin(now, s.window) {
		return creds, nil
	}

	refreshed, err := s.renewer.renew(ctx, creds, domain.SystemUserID)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshUnavailable) && !creds.IsExpired(now) {
			// Still usable for now; the user reconnects before it lapses.
			return creds, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// Status summarizes every platform for a workspace.
func (s *credentialService) Status(ctx context.Context, workspaceID string) ([]*domain.ConnectionStatus, error) {
	byPlatform, err := s.byPlatform(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	statuses := make([]*domain.ConnectionStatus, 0, len(domain.AllPlatforms()))
	for _, p := range domain.AllPlatforms() {
		st := &domain.ConnectionStatus{Platform: p}
		if c, ok := byPlatform[p]; ok {
			st.Connected = c.IsConnected
			st.AccountID = c.AccountID
			st.AccountName = c.AccountName
			st.ConnectedAt = c.ConnectedAt
			st.ExpiresAt = c.ExpiresAt
			st.Expired = c.IsConnected && c.IsExpired(now)
			st.NeedsRefresh = c.IsConnected && c.ExpiresWithin(now, s.window)
			st.RefreshErrorCount = c.RefreshErrorCount
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// HealthCheck classifies every platform connection of a workspace.
// A workspace is healthy when no connected platform is expired or failing to refresh.
func (s *credentialService) HealthCheck(ctx context.Context, workspaceID string) (*domain.HealthReport, error) {
	byPlatform, err := s.byPlatform(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &domain.HealthReport{
		WorkspaceID: workspaceID,
		Healthy:     true,
		CheckedAt:   now,
	}
	for _, p := range domain.AllPlatforms() {
		h := classifyHealth(p, byPlatform[p], now, s.window)
		if h.State == domain.HealthExpired || h.State == domain.HealthRefreshFailing {
			report.Healthy = false
		}
		report.Platforms = append(report.Platforms, h)
	}
	return report, nil
}

func (s *credentialService) byPlatform(ctx context.Context, workspaceID string) (map[domain.Platform]*domain.PlatformCredentials, error) {
	list, err := s.store.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	out := make(map[domain.Platform]*domain.PlatformCredentials, len(list))
	for _, c := range list {
		out[c.Platform] = c
	}
	return out, nil
}

func classifyHealth(p domain.Platform, c *domain.PlatformCredentials, now time.Time, window time.Duration) *domain.PlatformHealth {
	h := &domain.PlatformHealth{Platform: p}
	switch {
	case c == nil || !c.IsConnected:
		h.State = domain.HealthDisconnected
	case c.IsExpired(now):
		h.State = domain.HealthExpired
		h.Message = "token expired, reconnect " + p.DisplayName()
	case c.RefreshErrorCount > 0:
		h.State = domain.HealthRefreshFailing
		h.Message = c.LastRefreshError
	case c.ExpiresWithin(now, window):
		h.State = domain.HealthExpiring
	default:
		h.State = domain.HealthHealthy
	}
	if c != nil {
		h.ExpiresAt = c.ExpiresAt
	}
	return h
}
