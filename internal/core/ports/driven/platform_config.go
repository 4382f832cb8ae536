package driven

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// PlatformApp holds the OAuth application credentials registered with a platform.
type PlatformApp struct {
	// ClientID is the client id, API key (Twitter) or client key (TikTok).
	ClientID string

	// ClientSecret is the matching secret.
	ClientSecret string

	// Scopes overrides the adapter's default scopes when set.
	Scopes []string
}

// IsConfigured reports whether both halves of the app credentials are present.
func (a *PlatformApp) IsConfigured() bool {
	return a != nil && a.ClientID != "" && a.ClientSecret != ""
}

// PlatformConfigStore provides the app credentials per platform.
type PlatformConfigStore interface {
	// Get returns the app for a platform, or domain.ErrConfigMissing if it is not configured.
	Get(ctx context.Context, platform domain.Platform) (*PlatformApp, error)

	// Configured lists the platforms that have app credentials.
	Configured(ctx context.Context) []domain.Platform
}
