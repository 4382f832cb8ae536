package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// auditor writes audit events opportunistically. A failed write is logged
// and never fails the operation being audited.
type auditor struct {
	log    driven.AuditLog
	logger *slog.Logger
}

func (a auditor) record(ctx context.Context, event *domain.AuditEvent) {
	if a.log == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := a.log.Record(ctx, event); err != nil {
		a.logger.Warn("failed to write audit event",
			"action", event.Action,
			"workspace_id", event.WorkspaceID,
			"platform", event.Platform,
			"error", err,
		)
	}
}

// callerEvent builds an event attributed to the request caller.
func callerEvent(rc *domain.RequestContext, platform domain.Platform, action domain.AuditAction, status domain.AuditStatus) *domain.AuditEvent {
	e := &domain.AuditEvent{
		Platform: platform,
		Action:   action,
		Status:   status,
	}
	if rc != nil {
		e.WorkspaceID = rc.WorkspaceID
		e.UserID = rc.UserID
		e.IPAddress = rc.IPAddress
	}
	return e
}
