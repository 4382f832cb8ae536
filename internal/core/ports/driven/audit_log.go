package driven

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// AuditLog appends connection lifecycle events.
type AuditLog interface {
	// Record appends an event. ID and CreatedAt are filled in when empty.
	Record(ctx context.Context, event *domain.AuditEvent) error

	// ListByWorkspace returns the most recent events of a workspace, newest first.
	ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]*domain.AuditEvent, error)
}
