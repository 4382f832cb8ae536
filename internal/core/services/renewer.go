package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// DefaultRefreshWindow is how close to expiry a token gets renewed.
const DefaultRefreshWindow = 24 * time.Hour

// failureRecordTimeout bounds the bookkeeping after a failed refresh. It runs
// detached from the refresh deadline, which has usually fired by then.
const failureRecordTimeout = 5 * time.Second

// renewer renews one credential through its platform adapter. It is shared
// by the on-demand check and the periodic sweep.
type renewer struct {
	store     driven.CredentialStore
	providers driven.ProviderRegistry
	configs   driven.PlatformConfigStore
	audit     auditor
	logger    *slog.Logger
	now       func() time.Time
}

// refresherFor returns the adapter's refresher when the credential can be renewed.
func (r *renewer) refresherFor(creds *domain.PlatformCredentials) (driven.TokenRefresher, error) {
	provider, err := r.providers.Get(creds.Platform)
	if err != nil {
		return nil, err
	}
	refresher, ok := provider.(driven.TokenRefresher)
	if !ok {
		return nil, domain.ErrRefreshUnavailable
	}

	switch refresher.RefreshMode() {
	case domain.RefreshModeRefreshToken:
		if creds.RefreshToken == "" {
			return nil, domain.ErrRefreshUnavailable
		}
	case domain.RefreshModeReexchange:
		// Only a still-valid long-lived token can be traded for a new one.
		if creds.AccessToken == "" || creds.IsExpired(r.now()) {
			return nil, domain.ErrRefreshUnavailable
		}
	default:
		return nil, domain.ErrRefreshUnavailable
	}
	return refresher, nil
}

// renew refreshes creds and persists the outcome. On adapter failure the
// error count is incremented and the old token stays in place.
// Returns domain.ErrRefreshUnavailable or an error wrapping domain.ErrRefreshFailed.
func (r *renewer) renew(ctx context.Context, creds *domain.PlatformCredentials, actor string) (*domain.PlatformCredentials, error) {
	refresher, err := r.refresherFor(creds)
	if err != nil {
		return nil, err
	}

	event := &domain.AuditEvent{
		WorkspaceID: creds.WorkspaceID,
		UserID:      actor,
		Platform:    creds.Platform,
	}

	token, err := r.refreshToken(ctx, refresher, creds)
	if err != nil {
		r.recordFailure(ctx, creds, event, err)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRefreshFailed, creds.Platform, err)
	}

	updated := *creds
	updated.ApplyToken(token, r.now())
	if err := r.store.UpdateTokens(ctx, &updated); err != nil {
		return nil, fmt.Errorf("%w: store refreshed token: %w", domain.ErrRefreshFailed, err)
	}

	event.Action = domain.AuditTokenRefreshed
	event.Status = domain.AuditStatusSuccess
	r.audit.record(ctx, event)

	r.logger.Info("token refreshed",
		"workspace_id", creds.WorkspaceID,
		"platform", creds.Platform,
		"expires_at", updated.ExpiresAt,
	)
	return &updated, nil
}

// recordFailure bumps the error count and audits the failure. A provider that
// hung past the deadline counts the same as one that answered with an error.
func (r *renewer) recordFailure(ctx context.Context, creds *domain.PlatformCredentials, event *domain.AuditEvent, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()

	if err := r.store.RecordRefreshFailure(ctx, creds.WorkspaceID, creds.Platform, cause.Error()); err != nil {
		r.logger.Error("failed to record refresh failure",
			"workspace_id", creds.WorkspaceID,
			"platform", creds.Platform,
			"error", err,
		)
	}
	event.Action = domain.AuditTokenRefreshFailed
	event.Status = domain.AuditStatusFailed
	event.ErrorCode = "refresh_failed"
	if errors.Is(cause, context.DeadlineExceeded) {
		event.ErrorCode = "refresh_timeout"
	}
	r.audit.record(ctx, event)
}

func (r *renewer) refreshToken(ctx context.Context, refresher driven.TokenRefresher, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	app, err := r.configs.Get(ctx, creds.Platform)
	if err != nil {
		return nil, err
	}
	token, err := refresher.RefreshToken(ctx, app, creds)
	if err != nil {
		return nil, err
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in refresh response", domain.ErrUpstream)
	}
	return token, nil
}
