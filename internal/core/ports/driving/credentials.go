package driving

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// CredentialService manages connected platform credentials.
type CredentialService interface {
	// Get returns the credentials for a platform, or nil if none exist.
	Get(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error)

	// Save upserts credentials on behalf of userID.
	Save(ctx context.Context, platform domain.Platform, creds *domain.PlatformCredentials, userID, workspaceID string) error

	// Disconnect clears the platform's tokens. The credential row and audit history are kept.
	Disconnect(ctx context.Context, platform domain.Platform, caller *domain.RequestContext) error

	// VerifyAndRefreshIfNeeded refreshes the token when it expires inside the
	// refresh window. Returns domain.ErrNotConnected, domain.ErrRefreshUnavailable
	// or an error wrapping domain.ErrRefreshFailed.
	VerifyAndRefreshIfNeeded(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error)

	// Status summarizes every platform for a workspace.
	Status(ctx context.Context, workspaceID string) ([]*domain.ConnectionStatus, error)

	// HealthCheck classifies every platform connection of a workspace.
	HealthCheck(ctx context.Context, workspaceID string) (*domain.HealthReport, error)
}

// TokenRefreshService runs the periodic credential maintenance sweep.
type TokenRefreshService interface {
	// Sweep refreshes every connected credential near expiry and garbage
	// collects expired OAuth states. One failing credential never stops the rest.
	Sweep(ctx context.Context) (*domain.SweepReport, error)
}
