// Package tiktok implements the TikTok Login Kit adapter (OAuth 2.0 with PKCE).
//
// TikTok names the client id client_key and separates scopes with commas, so
// requests are built by hand instead of through x/oauth2.
package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Provider implements the interfaces.
var (
	_ driven.OAuthProvider  = (*Provider)(nil)
	_ driven.TokenRefresher = (*Provider)(nil)
)

// DefaultScopes read the profile and publish videos.
var DefaultScopes = []string{"user.info.basic", "video.upload", "video.publish"}

const (
	defaultAuthURL = "https://www.tiktok.com/v2/auth/authorize/"
	defaultAPIBase = "https://open.tiktokapis.com"
)

// Provider talks to TikTok's v2 OAuth and user info endpoints.
type Provider struct {
	httpClient *http.Client
	authURL    string
	apiBase    string
	now        func() time.Time
}

// New creates a TikTok adapter. A nil client gets the default 30s client.
func New(client *http.Client) *Provider {
	if client == nil {
		client = providers.NewHTTPClient()
	}
	return &Provider{
		httpClient: client,
		authURL:    defaultAuthURL,
		apiBase:    defaultAPIBase,
		now:        time.Now,
	}
}

// WithBaseURL points every endpoint at baseURL. Used against test servers.
func (p *Provider) WithBaseURL(baseURL string) *Provider {
	p.authURL = baseURL + "/v2/auth/authorize/"
	p.apiBase = baseURL
	return p
}

func (p *Provider) Platform() domain.Platform       { return domain.PlatformTikTok }
func (p *Provider) Flow() domain.AuthFlow           { return domain.AuthFlowOAuth2PKCE }
func (p *Provider) RefreshMode() domain.RefreshMode { return domain.RefreshModeRefreshToken }

func scopes(app *driven.PlatformApp) string {
	if len(app.Scopes) > 0 {
		return strings.Join(app.Scopes, ",")
	}
	return strings.Join(DefaultScopes, ",")
}

// AuthorizationURL builds the TikTok consent URL.
func (p *Provider) AuthorizationURL(_ context.Context, app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error) {
	params := url.Values{
		"client_key":    {app.ClientID},
		"response_type": {"code"},
		"scope":         {scopes(app)},
		"redirect_uri":  {req.RedirectURI},
		"state":         {req.State},
	}
	if req.CodeChallenge != "" {
		params.Set("code_challenge", req.CodeChallenge)
		params.Set("code_challenge_method", domain.ChallengeMethodS256)
	}
	return &driven.Authorization{
		URL:   p.authURL + "?" + params.Encode(),
		State: req.State,
	}, nil
}

// tokenResponse is the body of /v2/oauth/token/. Errors come back with
// status 200 and the error field set.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *Provider) token(ctx context.Context, form url.Values, op string) (*domain.OAuthToken, error) {
	var resp tokenResponse
	if err := providers.PostForm(ctx, p.httpClient, p.apiBase+"/v2/oauth/token/", form, op, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &providers.UpstreamError{Op: op, Status: http.StatusOK, Body: resp.Error + ": " + resp.ErrorDescription}
	}
	if resp.AccessToken == "" {
		return nil, &providers.UpstreamError{Op: op, Status: http.StatusOK, Body: "missing access_token"}
	}

	return &domain.OAuthToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    providers.ExpiresIn(p.now(), resp.ExpiresIn),
		Scope:        resp.Scope,
		Extra:        map[string]string{"open_id": resp.OpenID},
	}, nil
}

// ExchangeCode trades the callback code for a creator token.
func (p *Provider) ExchangeCode(ctx context.Context, app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error) {
	form := url.Values{
		"client_key":    {app.ClientID},
		"client_secret": {app.ClientSecret},
		"code":          {req.Code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {req.RedirectURI},
	}
	if req.CodeVerifier != "" {
		form.Set("code_verifier", req.CodeVerifier)
	}
	return p.token(ctx, form, "tiktok token exchange")
}

// FetchIdentity reads the creator profile.
func (p *Provider) FetchIdentity(ctx context.Context, _ *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	q := url.Values{"fields": {"open_id,union_id,display_name,username"}}

	var resp struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				DisplayName string `json:"display_name"`
				Username    string `json:"username"`
			} `json:"user"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := providers.GetJSON(ctx, p.httpClient, p.apiBase+"/v2/user/info/?"+q.Encode(), token.AccessToken, "tiktok user info", &resp); err != nil {
		return nil, err
	}
	if resp.Error.Code != "" && resp.Error.Code != "ok" {
		return nil, &providers.UpstreamError{Op: "tiktok user info", Body: fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message)}
	}

	user := resp.Data.User
	if user.OpenID == "" {
		user.OpenID = token.Extra["open_id"]
	}
	if user.OpenID == "" {
		return nil, &providers.UpstreamError{Op: "tiktok user info", Body: "missing open_id"}
	}

	return &domain.OAuthIdentity{
		PlatformUserID: user.OpenID,
		DisplayName:    user.DisplayName,
		Username:       user.Username,
		Details: domain.TikTokDetails{
			OpenID:      user.OpenID,
			DisplayName: user.DisplayName,
			Scope:       token.Scope,
		},
	}, nil
}

// RefreshToken renews the access token. TikTok rotates the refresh token too.
func (p *Provider) RefreshToken(ctx context.Context, app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("tiktok token refresh: %w: no refresh token", domain.ErrRefreshUnavailable)
	}
	form := url.Values{
		"client_key":    {app.ClientID},
		"client_secret": {app.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
	}
	return p.token(ctx, form, "tiktok token refresh")
}
