package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven/mocks"
)

func newTestAuthService() (*mocks.MockSessionVerifier, *mocks.MockWorkspaceStore, *authService) {
	verifier := mocks.NewMockSessionVerifier()
	workspaces := mocks.NewMockWorkspaceStore()
	svc := NewAuthService(verifier, workspaces).(*authService)
	return verifier, workspaces, svc
}

func TestAuthService_Authenticate(t *testing.T) {
	verifier, workspaces, svc := newTestAuthService()
	verifier.AddToken("tok-admin", "user-1")
	workspaces.AddMember("ws-1", "user-1", domain.RoleAdmin)
	workspaces.AddMember("ws-2", "user-1", domain.RoleViewer)

	rc, err := svc.Authenticate(context.Background(), "tok-admin", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.UserID != "user-1" || rc.WorkspaceID != "ws-1" || rc.Role != domain.RoleAdmin {
		t.Errorf("unexpected context: %+v", rc)
	}

	rc, err = svc.Authenticate(context.Background(), "tok-admin", "ws-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.WorkspaceID != "ws-2" || rc.Role != domain.RoleViewer {
		t.Errorf("expected explicit workspace selection, got %+v", rc)
	}
}

func TestAuthService_Authenticate_MissingToken(t *testing.T) {
	_, _, svc := newTestAuthService()

	_, err := svc.Authenticate(context.Background(), "", "")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_Authenticate_InvalidToken(t *testing.T) {
	_, _, svc := newTestAuthService()

	_, err := svc.Authenticate(context.Background(), "garbage", "")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_Authenticate_ExpiredToken(t *testing.T) {
	verifier, _, svc := newTestAuthService()
	verifier.VerifyTokenFn = func(token string) (*domain.SessionClaims, error) {
		return nil, domain.ErrTokenExpired
	}

	_, err := svc.Authenticate(context.Background(), "old", "")
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthService_Authenticate_NoWorkspace(t *testing.T) {
	verifier, _, svc := newTestAuthService()
	verifier.AddToken("tok", "loner")

	rc, err := svc.Authenticate(context.Background(), "tok", "")
	if !errors.Is(err, domain.ErrNoWorkspace) {
		t.Fatalf("expected ErrNoWorkspace, got %v", err)
	}
	if rc == nil || rc.UserID != "loner" {
		t.Error("expected the authenticated user to be returned alongside ErrNoWorkspace")
	}
}

func TestAuthService_Authenticate_StoreError(t *testing.T) {
	verifier, workspaces, svc := newTestAuthService()
	verifier.AddToken("tok", "user-1")
	workspaces.FindMembershipFn = func(userID, workspaceID string) (*domain.WorkspaceMember, error) {
		return nil, errors.New("connection refused")
	}

	_, err := svc.Authenticate(context.Background(), "tok", "")
	if err == nil || errors.Is(err, domain.ErrNoWorkspace) {
		t.Errorf("expected infrastructure error, got %v", err)
	}
}
