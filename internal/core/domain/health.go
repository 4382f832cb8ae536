package domain

import "time"

// ConnectionStatus summarizes one platform connection for the settings UI.
type ConnectionStatus struct {
	Platform          Platform   `json:"platform"`
	Connected         bool       `json:"connected"`
	AccountID         string     `json:"account_id,omitempty"`
	AccountName       string     `json:"account_name,omitempty"`
	ConnectedAt       *time.Time `json:"connected_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Expired           bool       `json:"expired"`
	NeedsRefresh      bool       `json:"needs_refresh"`
	RefreshErrorCount int        `json:"refresh_error_count"`
}

// HealthState classifies a connection's ability to publish.
type HealthState string

const (
	HealthHealthy        HealthState = "healthy"
	HealthExpiring       HealthState = "expiring"
	HealthExpired        HealthState = "expired"
	HealthRefreshFailing HealthState = "refresh_failing"
	HealthDisconnected   HealthState = "disconnected"
)

// PlatformHealth is the health of one platform connection.
type PlatformHealth struct {
	Platform  Platform    `json:"platform"`
	State     HealthState `json:"state"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// HealthReport is the per-workspace health summary.
type HealthReport struct {
	WorkspaceID string            `json:"workspace_id"`
	Healthy     bool              `json:"healthy"`
	Platforms   []*PlatformHealth `json:"platforms"`
	CheckedAt   time.Time         `json:"checked_at"`
}

// RefreshCounts are the aggregate results of a token refresh sweep.
type RefreshCounts struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// CleanupCounts are the results of OAuth state garbage collection.
type CleanupCounts struct {
	Cleaned int64 `json:"cleaned"`
}

// SweepReport is what a refresh sweep reports back to its trigger.
type SweepReport struct {
	TokenRefresh      RefreshCounts `json:"tokenRefresh"`
	OAuthStateCleanup CleanupCounts `json:"oauthStateCleanup"`
	StartedAt         time.Time     `json:"-"`
	Duration          time.Duration `json:"-"`
}
