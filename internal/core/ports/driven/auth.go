package driven

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// SessionVerifier validates session tokens issued by the identity provider.
type SessionVerifier interface {
	// VerifyToken validates a session token and returns its claims.
	// Returns domain.ErrTokenExpired or domain.ErrTokenInvalid on failure.
	VerifyToken(token string) (*domain.SessionClaims, error)
}

// WorkspaceStore resolves workspace membership.
type WorkspaceStore interface {
	// FindMembership returns the user's membership in workspaceID. An empty
	// workspaceID selects the user's oldest membership.
	// Returns domain.ErrNoWorkspace if the user has no matching membership.
	FindMembership(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMember, error)
}
