package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// MockOAuthStateStore is an in-memory OAuthStateStore.
// Consumption runs under a single mutex so it is atomic like the real stores.
type MockOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.OAuthState
	seq    int

	// Now overrides the clock (optional)
	Now func() time.Time

	// Custom behavior hooks (optional)
	CreateFn  func(state *domain.OAuthState) error
	ConsumeFn func(workspaceID string, platform domain.Platform, state string) (*domain.OAuthState, error)
}

// NewMockOAuthStateStore creates a new in-memory state store.
func NewMockOAuthStateStore() *MockOAuthStateStore {
	return &MockOAuthStateStore{
		states: make(map[string]*domain.OAuthState),
	}
}

func (m *MockOAuthStateStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func stateKey(workspaceID string, platform domain.Platform, state string) string {
	return workspaceID + "|" + string(platform) + "|" + state
}

func (m *MockOAuthStateStore) Create(ctx context.Context, state *domain.OAuthState) error {
	if m.CreateFn != nil {
		return m.CreateFn(state)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if state.ID == "" {
		m.seq++
		state.ID = fmt.Sprintf("state-%d", m.seq)
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = state.CreatedAt.Add(domain.OAuthStateTTL)
	}

	cp := *state
	m.states[stateKey(state.WorkspaceID, state.Platform, state.State)] = &cp
	return nil
}

func (m *MockOAuthStateStore) ValidateAndConsume(ctx context.Context, workspaceID string, platform domain.Platform, state string) (*domain.OAuthState, error) {
	if m.ConsumeFn != nil {
		return m.ConsumeFn(workspaceID, platform, state)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[stateKey(workspaceID, platform, state)]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	now := m.now()
	if s.Used {
		return nil, domain.ErrStateUsed
	}
	if s.IsExpired(now) {
		return nil, domain.ErrStateExpired
	}

	s.Used = true
	s.UsedAt = &now
	cp := *s
	return &cp, nil
}

func (m *MockOAuthStateStore) CleanupExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for k, s := range m.states {
		if s.IsExpired(now) {
			delete(m.states, k)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of a stored state (for test assertions).
func (m *MockOAuthStateStore) Get(workspaceID string, platform domain.Platform, state string) (*domain.OAuthState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[stateKey(workspaceID, platform, state)]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Len returns the number of stored states.
func (m *MockOAuthStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
