// Package linkedin implements the LinkedIn OAuth 2.0 adapter with PKCE.
package linkedin

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	oauthlinkedin "golang.org/x/oauth2/linkedin"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Provider implements the interfaces.
var (
	_ driven.OAuthProvider  = (*Provider)(nil)
	_ driven.TokenRefresher = (*Provider)(nil)
)

// DefaultScopes cover OpenID sign-in and posting as the member.
var DefaultScopes = []string{"openid", "profile", "email", "w_member_social"}

const defaultUserInfoURL = "https://api.linkedin.com/v2/userinfo"

// Provider talks to LinkedIn's OAuth 2.0 and OpenID userinfo endpoints.
type Provider struct {
	httpClient  *http.Client
	endpoint    oauth2.Endpoint
	userInfoURL string
}

// New creates a LinkedIn adapter. A nil client gets the default 30s client.
func New(client *http.Client) *Provider {
	if client == nil {
		client = providers.NewHTTPClient()
	}
	return &Provider{
		httpClient:  client,
		endpoint:    oauthlinkedin.Endpoint,
		userInfoURL: defaultUserInfoURL,
	}
}

// WithBaseURL points every endpoint at baseURL. Used against test servers.
func (p *Provider) WithBaseURL(baseURL string) *Provider {
	p.endpoint = oauth2.Endpoint{
		AuthURL:   baseURL + "/oauth/v2/authorization",
		TokenURL:  baseURL + "/oauth/v2/accessToken",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = baseURL + "/v2/userinfo"
	return p
}

func (p *Provider) Platform() domain.Platform       { return domain.PlatformLinkedIn }
func (p *Provider) Flow() domain.AuthFlow           { return domain.AuthFlowOAuth2PKCE }
func (p *Provider) RefreshMode() domain.RefreshMode { return domain.RefreshModeRefreshToken }

// AuthorizationURL builds the LinkedIn consent URL with an S256 challenge.
func (p *Provider) AuthorizationURL(_ context.Context, app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error) {
	cfg := providers.OAuth2Config(app, p.endpoint, req.RedirectURI, DefaultScopes)
	return &driven.Authorization{
		URL:   cfg.AuthCodeURL(req.State, providers.ChallengeOptions(req.CodeChallenge)...),
		State: req.State,
	}, nil
}

// ExchangeCode trades the callback code and PKCE verifier for a member token.
func (p *Provider) ExchangeCode(ctx context.Context, app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error) {
	cfg := providers.OAuth2Config(app, p.endpoint, req.RedirectURI, DefaultScopes)
	return providers.Exchange(ctx, p.httpClient, cfg, req.Code, req.CodeVerifier)
}

// FetchIdentity reads the OpenID userinfo of the member.
func (p *Provider) FetchIdentity(ctx context.Context, _ *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	var info struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := providers.GetJSON(ctx, p.httpClient, p.userInfoURL, token.AccessToken, "linkedin userinfo", &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, &providers.UpstreamError{Op: "linkedin userinfo", Body: "missing sub"}
	}

	return &domain.OAuthIdentity{
		PlatformUserID: info.Sub,
		DisplayName:    info.Name,
		Username:       info.Email,
		Details: domain.LinkedInDetails{
			ProfileID: info.Sub,
			Name:      info.Name,
			Email:     info.Email,
		},
	}, nil
}

// RefreshToken runs the refresh_token grant. LinkedIn only issues refresh
// tokens to approved partner apps, so a missing one is common.
func (p *Provider) RefreshToken(ctx context.Context, app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	cfg := providers.OAuth2Config(app, p.endpoint, "", DefaultScopes)
	return providers.Refresh(ctx, p.httpClient, cfg, creds.RefreshToken)
}
