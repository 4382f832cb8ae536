package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	verifier   driven.SessionVerifier
	workspaces driven.WorkspaceStore
}

// NewAuthService creates a new AuthService
func NewAuthService(verifier driven.SessionVerifier, workspaces driven.WorkspaceStore) driving.AuthService {
	return &authService{
		verifier:   verifier,
		workspaces: workspaces,
	}
}

// Authenticate validates the session token and resolves the caller's workspace membership
func (s *authService) Authenticate(ctx context.Context, token, workspaceID string) (*domain.RequestContext, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	claims, err := s.verifier.VerifyToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrUnauthorized
	}
	if claims.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	rc := &domain.RequestContext{
		UserID: claims.UserID,
		Email:  claims.Email,
	}

	member, err := s.workspaces.FindMembership(ctx, claims.UserID, workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrNoWorkspace) {
			// The caller is authenticated; the missing workspace is reported separately.
			return rc, domain.ErrNoWorkspace
		}
		return nil, fmt.Errorf("find workspace membership: %w", err)
	}

	rc.WorkspaceID = member.WorkspaceID
	rc.Role = member.Role
	return rc, nil
}
