package mocks

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// MockProvider is a configurable OAuthProvider and TokenRefresher.
type MockProvider struct {
	PlatformValue domain.Platform
	FlowValue     domain.AuthFlow
	Mode          domain.RefreshMode

	// Custom behavior hooks (optional)
	AuthorizationURLFn func(app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error)
	ExchangeCodeFn     func(app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error)
	FetchIdentityFn    func(app *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error)
	RefreshTokenFn     func(app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error)

	// RefreshDelay makes RefreshToken wait before answering, or until ctx ends.
	RefreshDelay time.Duration

	mu             sync.Mutex
	ExchangeCalls  []driven.ExchangeRequest
	RefreshedCreds []string
}

// NewMockProvider creates a provider mock that succeeds by default.
func NewMockProvider(platform domain.Platform, flow domain.AuthFlow) *MockProvider {
	return &MockProvider{
		PlatformValue: platform,
		FlowValue:     flow,
		Mode:          domain.RefreshModeRefreshToken,
	}
}

func (m *MockProvider) Platform() domain.Platform { return m.PlatformValue }

func (m *MockProvider) Flow() domain.AuthFlow { return m.FlowValue }

func (m *MockProvider) RefreshMode() domain.RefreshMode { return m.Mode }

func (m *MockProvider) AuthorizationURL(ctx context.Context, app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error) {
	if m.AuthorizationURLFn != nil {
		return m.AuthorizationURLFn(app, req)
	}

	q := url.Values{}
	q.Set("client_id", app.ClientID)
	q.Set("redirect_uri", req.RedirectURI)
	q.Set("state", req.State)
	if req.CodeChallenge != "" {
		q.Set("code_challenge", req.CodeChallenge)
		q.Set("code_challenge_method", domain.ChallengeMethodS256)
	}
	return &driven.Authorization{
		URL:   "https://auth.example.com/" + string(m.PlatformValue) + "?" + q.Encode(),
		State: req.State,
	}, nil
}

func (m *MockProvider) ExchangeCode(ctx context.Context, app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error) {
	m.mu.Lock()
	m.ExchangeCalls = append(m.ExchangeCalls, req)
	m.mu.Unlock()

	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(app, req)
	}
	return &domain.OAuthToken{AccessToken: "access-" + req.Code, RefreshToken: "refresh-" + req.Code}, nil
}

func (m *MockProvider) FetchIdentity(ctx context.Context, app *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	if m.FetchIdentityFn != nil {
		return m.FetchIdentityFn(app, token)
	}
	return &domain.OAuthIdentity{
		PlatformUserID: "user-1",
		DisplayName:    "Test User",
		Details:        defaultDetails(m.PlatformValue),
	}, nil
}

func (m *MockProvider) RefreshToken(ctx context.Context, app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	m.mu.Lock()
	m.RefreshedCreds = append(m.RefreshedCreds, creds.WorkspaceID)
	m.mu.Unlock()

	if m.RefreshDelay > 0 {
		select {
		case <-time.After(m.RefreshDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.RefreshTokenFn != nil {
		return m.RefreshTokenFn(app, creds)
	}
	return nil, errors.New("refresh not configured")
}

// ExchangeCount returns how many token exchanges were attempted.
func (m *MockProvider) ExchangeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExchangeCalls)
}

func defaultDetails(p domain.Platform) domain.CredentialDetails {
	switch p {
	case domain.PlatformTwitter:
		return domain.TwitterDetails{UserID: "user-1", ScreenName: "test"}
	case domain.PlatformLinkedIn:
		return domain.LinkedInDetails{ProfileID: "user-1", Name: "Test User"}
	case domain.PlatformFacebook:
		return domain.FacebookDetails{UserID: "user-1", Name: "Test User"}
	case domain.PlatformInstagram:
		return domain.InstagramDetails{BusinessAccountID: "user-1", Username: "test"}
	case domain.PlatformTikTok:
		return domain.TikTokDetails{OpenID: "user-1", DisplayName: "Test User"}
	case domain.PlatformYouTube:
		return domain.YouTubeDetails{ChannelID: "user-1", ChannelTitle: "Test User"}
	}
	return nil
}

// MockProviderRegistry maps platforms to providers.
type MockProviderRegistry struct {
	providers map[domain.Platform]driven.OAuthProvider
}

// NewMockProviderRegistry creates a registry holding the given providers.
func NewMockProviderRegistry(providers ...driven.OAuthProvider) *MockProviderRegistry {
	r := &MockProviderRegistry{providers: make(map[domain.Platform]driven.OAuthProvider)}
	for _, p := range providers {
		r.providers[p.Platform()] = p
	}
	return r
}

func (r *MockProviderRegistry) Get(platform domain.Platform) (driven.OAuthProvider, error) {
	p, ok := r.providers[platform]
	if !ok {
		return nil, domain.ErrInvalidPlatform
	}
	return p, nil
}

func (r *MockProviderRegistry) Platforms() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.AllPlatforms() {
		if _, ok := r.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// MockPlatformConfigStore serves fixed app credentials.
type MockPlatformConfigStore struct {
	Apps map[domain.Platform]*driven.PlatformApp
}

// NewMockPlatformConfigStore creates a config store with an app for every given platform.
func NewMockPlatformConfigStore(platforms ...domain.Platform) *MockPlatformConfigStore {
	s := &MockPlatformConfigStore{Apps: make(map[domain.Platform]*driven.PlatformApp)}
	for _, p := range platforms {
		s.Apps[p] = &driven.PlatformApp{ClientID: string(p) + "-client", ClientSecret: string(p) + "-secret"}
	}
	return s
}

func (s *MockPlatformConfigStore) Get(ctx context.Context, platform domain.Platform) (*driven.PlatformApp, error) {
	app, ok := s.Apps[platform]
	if !ok || !app.IsConfigured() {
		return nil, domain.ErrConfigMissing
	}
	return app, nil
}

func (s *MockPlatformConfigStore) Configured(ctx context.Context) []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.AllPlatforms() {
		if app, ok := s.Apps[p]; ok && app.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}
