package driving

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// AuthService builds the authenticated request context shared by every route.
type AuthService interface {
	// Authenticate validates a session token and resolves the caller's workspace.
	// workspaceID may be empty to select the default workspace.
	// Returns domain.ErrUnauthorized, domain.ErrTokenExpired or domain.ErrNoWorkspace.
	Authenticate(ctx context.Context, token, workspaceID string) (*domain.RequestContext, error)
}
