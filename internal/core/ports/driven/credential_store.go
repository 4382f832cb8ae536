package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// CredentialStore persists platform credentials, one row per (workspace, platform).
// Implementations encrypt token material at rest.
type CredentialStore interface {
	// Get returns the credentials for a workspace and platform.
	// Returns nil, nil if none exist.
	Get(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error)

	// Save upserts the credentials. A later save for the same
	// (workspace, platform) overwrites the earlier one.
	Save(ctx context.Context, creds *domain.PlatformCredentials) error

	// Disconnect clears tokens and sets is_connected = false.
	// The row is kept. Returns domain.ErrNotFound if there is no row.
	Disconnect(ctx context.Context, workspaceID string, platform domain.Platform) error

	// ListByWorkspace returns every credential row of a workspace.
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.PlatformCredentials, error)

	// ListExpiring returns connected credentials across all workspaces whose
	// expiry falls before the given time.
	ListExpiring(ctx context.Context, before time.Time) ([]*domain.PlatformCredentials, error)

	// UpdateTokens stores refreshed tokens and resets the refresh error count.
	UpdateTokens(ctx context.Context, creds *domain.PlatformCredentials) error

	// RecordRefreshFailure increments refresh_error_count and stores the
	// error message. The existing tokens are left in place.
	RecordRefreshFailure(ctx context.Context, workspaceID string, platform domain.Platform, message string) error
}
