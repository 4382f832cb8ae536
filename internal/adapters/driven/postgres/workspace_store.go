package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.WorkspaceStore = (*WorkspaceStore)(nil)

// WorkspaceStore implements driven.WorkspaceStore using PostgreSQL
type WorkspaceStore struct {
	db *sql.DB
}

// NewWorkspaceStore creates a new WorkspaceStore
func NewWorkspaceStore(db *sql.DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

// AddMember creates or updates a membership
func (s *WorkspaceStore) AddMember(ctx context.Context, member *domain.WorkspaceMember) error {
	if !member.Role.IsValid() {
		return fmt.Errorf("%w: role %q", domain.ErrInvalidInput, member.Role)
	}

	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET
			role = EXCLUDED.role
	`

	var createdAt sql.NullTime
	if !member.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: member.CreatedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query, member.WorkspaceID, member.UserID, string(member.Role), createdAt)
	if err != nil {
		return fmt.Errorf("add workspace member: %w", err)
	}
	return nil
}

// FindMembership returns the user's membership in workspaceID, or the oldest
// membership when workspaceID is empty
func (s *WorkspaceStore) FindMembership(ctx context.Context, userID, workspaceID string) (*domain.WorkspaceMember, error) {
	query := `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_members
		WHERE user_id = $1 AND ($2 = '' OR workspace_id = $2)
		ORDER BY created_at ASC
		LIMIT 1
	`

	var m domain.WorkspaceMember
	var role string
	err := s.db.QueryRowContext(ctx, query, userID, workspaceID).Scan(
		&m.WorkspaceID,
		&m.UserID,
		&role,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoWorkspace
	}
	if err != nil {
		return nil, fmt.Errorf("find workspace membership: %w", err)
	}

	m.Role = domain.Role(role)
	return &m, nil
}
