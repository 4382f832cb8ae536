package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// MockCredentialStore is an in-memory CredentialStore.
// Rows are copied on the way in and out so callers cannot mutate stored state.
type MockCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*domain.PlatformCredentials
	seq   int

	// Custom behavior hooks (optional)
	SaveFn         func(creds *domain.PlatformCredentials) error
	UpdateTokensFn func(creds *domain.PlatformCredentials) error
	ListExpiringFn func(before time.Time) ([]*domain.PlatformCredentials, error)
}

// NewMockCredentialStore creates a new in-memory credential store.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		creds: make(map[string]*domain.PlatformCredentials),
	}
}

func credKey(workspaceID string, platform domain.Platform) string {
	return workspaceID + "|" + string(platform)
}

func copyCreds(c *domain.PlatformCredentials) *domain.PlatformCredentials {
	cp := *c
	return &cp
}

func (m *MockCredentialStore) Get(ctx context.Context, workspaceID string, platform domain.Platform) (*domain.PlatformCredentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.creds[credKey(workspaceID, platform)]
	if !ok {
		return nil, nil
	}
	return copyCreds(c), nil
}

func (m *MockCredentialStore) Save(ctx context.Context, creds *domain.PlatformCredentials) error {
	if m.SaveFn != nil {
		return m.SaveFn(creds)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := credKey(creds.WorkspaceID, creds.Platform)
	if existing, ok := m.creds[key]; ok {
		creds.ID = existing.ID
	} else if creds.ID == "" {
		m.seq++
		creds.ID = fmt.Sprintf("cred-%d", m.seq)
	}
	m.creds[key] = copyCreds(creds)
	return nil
}

func (m *MockCredentialStore) Disconnect(ctx context.Context, workspaceID string, platform domain.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creds[credKey(workspaceID, platform)]
	if !ok {
		return domain.ErrNotFound
	}
	c.Disconnect(time.Now())
	return nil
}

func (m *MockCredentialStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.PlatformCredentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.PlatformCredentials
	for _, c := range m.creds {
		if c.WorkspaceID == workspaceID {
			result = append(result, copyCreds(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Platform < result[j].Platform })
	return result, nil
}

func (m *MockCredentialStore) ListExpiring(ctx context.Context, before time.Time) ([]*domain.PlatformCredentials, error) {
	if m.ListExpiringFn != nil {
		return m.ListExpiringFn(before)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.PlatformCredentials
	for _, c := range m.creds {
		if c.IsConnected && c.ExpiresAt != nil && c.ExpiresAt.Before(before) {
			result = append(result, copyCreds(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkspaceID < result[j].WorkspaceID })
	return result, nil
}

func (m *MockCredentialStore) UpdateTokens(ctx context.Context, creds *domain.PlatformCredentials) error {
	if m.UpdateTokensFn != nil {
		return m.UpdateTokensFn(creds)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := credKey(creds.WorkspaceID, creds.Platform)
	c, ok := m.creds[key]
	if !ok {
		return domain.ErrNotFound
	}
	c.AccessToken = creds.AccessToken
	c.RefreshToken = creds.RefreshToken
	c.ExpiresAt = creds.ExpiresAt
	c.Details = creds.Details
	c.RefreshErrorCount = 0
	c.LastRefreshError = ""
	c.LastRefreshedAt = creds.LastRefreshedAt
	c.UpdatedAt = creds.UpdatedAt
	return nil
}

func (m *MockCredentialStore) RecordRefreshFailure(ctx context.Context, workspaceID string, platform domain.Platform, message string) error {
	// A database driver refuses work on a finished context.
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creds[credKey(workspaceID, platform)]
	if !ok {
		return domain.ErrNotFound
	}
	c.RefreshErrorCount++
	c.LastRefreshError = message
	return nil
}

// Put stores credentials directly (for test setup).
func (m *MockCredentialStore) Put(creds *domain.PlatformCredentials) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if creds.ID == "" {
		m.seq++
		creds.ID = fmt.Sprintf("cred-%d", m.seq)
	}
	m.creds[credKey(creds.WorkspaceID, creds.Platform)] = copyCreds(creds)
}

// Len returns the number of stored rows.
func (m *MockCredentialStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
