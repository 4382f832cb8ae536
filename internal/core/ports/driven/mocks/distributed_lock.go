package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// MockDistributedLock is an in-memory lock with expiring leases.
type MockDistributedLock struct {
	mu     sync.Mutex
	held   map[string]*MockLease
	Now    func() time.Time
	TryErr error

	refreshes int
}

// NewMockDistributedLock creates an empty lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]*MockLease), Now: time.Now}
}

// MockLease is a lease handed out by MockDistributedLock.
type MockLease struct {
	lock    *MockDistributedLock
	name    string
	expires time.Time
}

func (m *MockDistributedLock) TryLock(ctx context.Context, name string, ttl time.Duration) (driven.Lease, error) {
	if m.TryErr != nil {
		return nil, m.TryErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.held[name]; ok && m.Now().Before(l.expires) {
		return nil, nil
	}
	l := &MockLease{lock: m, name: name, expires: m.Now().Add(ttl)}
	m.held[name] = l
	return l, nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error { return nil }

// Hold makes name look taken by another instance for ttl.
func (m *MockDistributedLock) Hold(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = &MockLease{lock: m, name: name, expires: m.Now().Add(ttl)}
}

// Steal hands name to another holder, as if the current lease expired meanwhile.
func (m *MockDistributedLock) Steal(name string) {
	m.Hold(name, time.Hour)
}

// IsHeld reports whether name has an unexpired holder.
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.held[name]
	return ok && m.Now().Before(l.expires)
}

// Refreshes counts successful lease refreshes.
func (m *MockDistributedLock) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

func (l *MockLease) Refresh(ctx context.Context, ttl time.Duration) error {
	m := l.lock
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[l.name] != l || !m.Now().Before(l.expires) {
		return domain.ErrLockLost
	}
	l.expires = m.Now().Add(ttl)
	m.refreshes++
	return nil
}

func (l *MockLease) Release(ctx context.Context) error {
	m := l.lock
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[l.name] == l {
		delete(m.held, l.name)
	}
	return nil
}
