package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// MockAuditLog records audit events in memory.
type MockAuditLog struct {
	mu     sync.Mutex
	events []*domain.AuditEvent

	// RecordFn overrides Record (optional)
	RecordFn func(event *domain.AuditEvent) error
}

// NewMockAuditLog creates a new in-memory audit log.
func NewMockAuditLog() *MockAuditLog {
	return &MockAuditLog{}
}

func (m *MockAuditLog) Record(ctx context.Context, event *domain.AuditEvent) error {
	if m.RecordFn != nil {
		return m.RecordFn(event)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockAuditLog) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]*domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*domain.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].WorkspaceID == workspaceID {
			result = append(result, m.events[i])
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// Events returns all recorded events in order.
func (m *MockAuditLog) Events() []*domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Actions returns the recorded actions in order.
func (m *MockAuditLog) Actions() []domain.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.AuditAction, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

// Count returns how many events carry the given action.
func (m *MockAuditLog) Count(action domain.AuditAction) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.events {
		if e.Action == action {
			n++
		}
	}
	return n
}
