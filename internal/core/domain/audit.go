package domain

import "time"

// AuditAction names a lifecycle transition recorded in the audit log.
type AuditAction string

const (
	AuditOAuthInitiated           AuditAction = "oauth_initiated"
	AuditOAuthDenied              AuditAction = "oauth_denied"
	AuditOAuthRejected            AuditAction = "oauth_rejected"
	AuditOAuthMissingParams       AuditAction = "oauth_missing_params"
	AuditOAuthCSRFFailed          AuditAction = "oauth_csrf_failed"
	AuditOAuthMissingVerifier     AuditAction = "oauth_missing_verifier"
	AuditOAuthTokenExchangeFailed AuditAction = "oauth_token_exchange_failed"
	AuditOAuthIdentityFailed      AuditAction = "oauth_identity_failed"
	AuditOAuthSaveFailed          AuditAction = "oauth_save_failed"
	AuditOAuthConnected           AuditAction = "oauth_connected"
	AuditPlatformDisconnected     AuditAction = "platform_disconnected"
	AuditTokenRefreshed           AuditAction = "token_refreshed"
	AuditTokenRefreshFailed       AuditAction = "token_refresh_failed"
	AuditPostAttempt              AuditAction = "post_attempt"
)

// AuditStatus is the outcome of an audited action.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// SystemUserID attributes events raised by background jobs.
const SystemUserID = "system"

// AuditEvent is one append-only audit record.
type AuditEvent struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	UserID      string            `json:"user_id"`
	Platform    Platform          `json:"platform"`
	Action      AuditAction       `json:"action"`
	Status      AuditStatus       `json:"status"`
	ErrorCode   string            `json:"error_code,omitempty"`
	IPAddress   string            `json:"ip_address,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
