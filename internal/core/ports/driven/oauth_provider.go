package driven

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// AuthorizationRequest carries what an adapter needs to build an authorization URL.
type AuthorizationRequest struct {
	RedirectURI string

	// State is the CSRF token generated by the orchestrator. OAuth 1.0a
	// adapters ignore it and return their request token as state instead.
	State string

	// CodeChallenge is set for PKCE flows (method S256).
	CodeChallenge string
}

// Authorization is the URL to send the user to, plus anything the
// orchestrator must persist for the callback.
type Authorization struct {
	URL string

	// State is the value the platform echoes back on the callback.
	State string

	// TokenSecret is the OAuth 1.0a request-token secret.
	TokenSecret string
}

// ExchangeRequest carries the callback data needed to obtain tokens.
type ExchangeRequest struct {
	// Code is the authorization code, or the OAuth 1.0a verifier.
	Code         string
	RedirectURI  string
	CodeVerifier string

	// State and TokenSecret are the OAuth 1.0a request token and its secret.
	State       string
	TokenSecret string
}

// OAuthProvider is the per-platform authorization contract.
type OAuthProvider interface {
	// Platform returns the platform this adapter serves.
	Platform() domain.Platform

	// Flow returns the protocol the platform speaks.
	Flow() domain.AuthFlow

	// AuthorizationURL builds the URL the user is redirected to.
	AuthorizationURL(ctx context.Context, app *PlatformApp, req AuthorizationRequest) (*Authorization, error)

	// ExchangeCode trades the callback code for tokens.
	ExchangeCode(ctx context.Context, app *PlatformApp, req ExchangeRequest) (*domain.OAuthToken, error)

	// FetchIdentity resolves the connected account. It may return
	// domain.ErrNoFacebookPages, domain.ErrNoInstagramBusiness or
	// domain.ErrNoYouTubeChannel.
	FetchIdentity(ctx context.Context, app *PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error)
}

// TokenRefresher is implemented by adapters that can renew tokens server-side.
type TokenRefresher interface {
	// RefreshMode reports how renewal works for this platform.
	RefreshMode() domain.RefreshMode

	// RefreshToken renews the access token held in creds.
	RefreshToken(ctx context.Context, app *PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error)
}

// ProviderRegistry resolves adapters by platform.
type ProviderRegistry interface {
	// Get returns the adapter for a platform, or domain.ErrInvalidPlatform.
	Get(platform domain.Platform) (OAuthProvider, error)

	// Platforms lists the registered platforms.
	Platforms() []domain.Platform
}
