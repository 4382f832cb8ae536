package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuditLog = (*AuditLog)(nil)

// defaultAuditListLimit caps ListByWorkspace when no limit is given.
const defaultAuditListLimit = 100

// AuditLog implements driven.AuditLog using PostgreSQL. Rows are append-only.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog creates a new AuditLog
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record appends an audit event
func (l *AuditLog) Record(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			id, workspace_id, user_id, platform, action, status,
			error_code, ip_address, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := l.db.ExecContext(ctx, query,
		event.ID,
		event.WorkspaceID,
		event.UserID,
		nullString(string(event.Platform)),
		string(event.Action),
		string(event.Status),
		nullString(event.ErrorCode),
		nullString(event.IPAddress),
		metadata,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// ListByWorkspace returns the newest events of a workspace first
func (l *AuditLog) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = defaultAuditListLimit
	}

	query := `
		SELECT id, workspace_id, user_id, platform, action, status,
		       error_code, ip_address, metadata, created_at
		FROM audit_events
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := l.db.QueryContext(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var (
			e                              domain.AuditEvent
			platform, errorCode, ipAddress sql.NullString
			action, status                 string
			metadata                       []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.WorkspaceID,
			&e.UserID,
			&platform,
			&action,
			&status,
			&errorCode,
			&ipAddress,
			&metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		e.Platform = domain.Platform(platform.String)
		e.Action = domain.AuditAction(action)
		e.Status = domain.AuditStatus(status)
		e.ErrorCode = errorCode.String
		e.IPAddress = ipAddress.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
