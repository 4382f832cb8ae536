package driven

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// OAuthStateStore persists CSRF state for in-flight authorization attempts.
// States are single-use and expire after domain.OAuthStateTTL.
type OAuthStateStore interface {
	// Create stores a new state. ID, CreatedAt and ExpiresAt are filled in
	// when empty.
	Create(ctx context.Context, state *domain.OAuthState) error

	// ValidateAndConsume looks the state up by (workspace, platform, state) and
	// marks it used in the same atomic operation. Of several concurrent callers
	// with the same triple, at most one gets a record back.
	// Returns domain.ErrStateNotFound, domain.ErrStateUsed or
	// domain.ErrStateExpired when the state cannot be consumed.
	ValidateAndConsume(ctx context.Context, workspaceID string, platform domain.Platform, state string) (*domain.OAuthState, error)

	// CleanupExpired deletes every state past its expiry, used or not, and
	// returns how many were removed.
	CleanupExpired(ctx context.Context) (int64, error)
}
