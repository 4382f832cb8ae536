package domain

import "time"

// Role defines a member's permission level within a workspace
type Role string

const (
	RoleOwner  Role = "owner"  // Billing, members, connections
	RoleAdmin  Role = "admin"  // Members, connections
	RoleEditor Role = "editor" // Create and publish posts
	RoleViewer Role = "viewer" // Read only
)

// IsValid checks if the role is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// WorkspaceMember links a user to a workspace with a role
type WorkspaceMember struct {
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionClaims is the identity extracted from a validated session token
type SessionClaims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// RequestContext is the authenticated caller of a request, built once per
// request and passed to every service that needs it.
type RequestContext struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	WorkspaceID string `json:"workspace_id"`
	Role        Role   `json:"role"`
	IPAddress   string `json:"ip_address,omitempty"`
}

// IsAuthenticated reports whether a user is attached to the request
func (rc *RequestContext) IsAuthenticated() bool {
	return rc != nil && rc.UserID != ""
}

// HasWorkspace reports whether the request resolved a workspace
func (rc *RequestContext) HasWorkspace() bool {
	return rc != nil && rc.WorkspaceID != ""
}

// IsAdmin checks if the caller administers the workspace
func (rc *RequestContext) IsAdmin() bool {
	return rc != nil && (rc.Role == RoleOwner || rc.Role == RoleAdmin)
}

// CanManageConnections reports whether the caller may connect or disconnect platforms
func (rc *RequestContext) CanManageConnections() bool {
	return rc.IsAdmin()
}
