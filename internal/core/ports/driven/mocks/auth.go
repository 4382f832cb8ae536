package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// MockSessionVerifier accepts tokens registered with AddToken.
type MockSessionVerifier struct {
	mu     sync.RWMutex
	tokens map[string]*domain.SessionClaims

	// VerifyTokenFn overrides VerifyToken (optional)
	VerifyTokenFn func(token string) (*domain.SessionClaims, error)
}

// NewMockSessionVerifier creates a new session verifier mock.
func NewMockSessionVerifier() *MockSessionVerifier {
	return &MockSessionVerifier{tokens: make(map[string]*domain.SessionClaims)}
}

// AddToken registers a token for a user.
func (m *MockSessionVerifier) AddToken(token, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = &domain.SessionClaims{UserID: userID}
}

func (m *MockSessionVerifier) VerifyToken(token string) (*domain.SessionClaims, error) {
	if m.VerifyTokenFn != nil {
		return m.VerifyTokenFn(token)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	claims, ok := m.tokens[token]
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// MockWorkspaceStore holds memberships in insertion order.
type MockWorkspaceStore struct {
	mu      sync.RWMutex
	members []*domain.WorkspaceMember

	// FindMembershipFn overrides FindMembership (optional)
	FindMembershipFn func(userID, workspaceID string) (*domain.WorkspaceMember, error)
}

// NewMockWorkspaceStore creates a new workspace store mock.
func NewMockWorkspaceStore() *MockWorkspaceStore {
	return &MockWorkspaceStore{}
}

// AddMember registers a membership.
func (m *MockWorkspaceStore) AddMember(workspaceID, userID string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, &domain.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role})
}

func (m *MockWorkspaceStore) FindMembership(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMember, error) {
	if m.FindMembershipFn != nil {
		return m.FindMembershipFn(userID, workspaceID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members {
		if mem.UserID != userID {
			continue
		}
		if workspaceID == "" || mem.WorkspaceID == workspaceID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, domain.ErrNoWorkspace
}
