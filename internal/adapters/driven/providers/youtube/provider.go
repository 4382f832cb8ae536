// Package youtube implements the YouTube adapter on Google OAuth 2.0 with PKCE.
package youtube

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Provider implements the interfaces.
var (
	_ driven.OAuthProvider  = (*Provider)(nil)
	_ driven.TokenRefresher = (*Provider)(nil)
)

// DefaultScopes allow uploading and reading the channel.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.readonly",
}

const defaultAPIBase = "https://www.googleapis.com/youtube/v3"

// Provider talks to Google's OAuth endpoints and the YouTube Data API.
type Provider struct {
	httpClient *http.Client
	endpoint   oauth2.Endpoint
	apiBase    string
}

// New creates a YouTube adapter. A nil client gets the default 30s client.
func New(client *http.Client) *Provider {
	if client == nil {
		client = providers.NewHTTPClient()
	}
	return &Provider{
		httpClient: client,
		endpoint:   google.Endpoint,
		apiBase:    defaultAPIBase,
	}
}

// WithBaseURL points every endpoint at baseURL. Used against test servers.
func (p *Provider) WithBaseURL(baseURL string) *Provider {
	p.endpoint = oauth2.Endpoint{
		AuthURL:   baseURL + "/o/oauth2/auth",
		TokenURL:  baseURL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.apiBase = baseURL + "/youtube/v3"
	return p
}

func (p *Provider) Platform() domain.Platform       { return domain.PlatformYouTube }
func (p *Provider) Flow() domain.AuthFlow           { return domain.AuthFlowOAuth2PKCE }
func (p *Provider) RefreshMode() domain.RefreshMode { return domain.RefreshModeRefreshToken }

// AuthorizationURL requests offline access and forces the consent screen so
// Google issues a refresh token on every connect.
func (p *Provider) AuthorizationURL(_ context.Context, app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error) {
	cfg := providers.OAuth2Config(app, p.endpoint, req.RedirectURI, DefaultScopes)
	opts := append(providers.ChallengeOptions(req.CodeChallenge), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return &driven.Authorization{
		URL:   cfg.AuthCodeURL(req.State, opts...),
		State: req.State,
	}, nil
}

// ExchangeCode trades the code, proving possession of the PKCE verifier.
func (p *Provider) ExchangeCode(ctx context.Context, app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error) {
	cfg := providers.OAuth2Config(app, p.endpoint, req.RedirectURI, DefaultScopes)
	return providers.Exchange(ctx, p.httpClient, cfg, req.Code, req.CodeVerifier)
}

// FetchIdentity resolves the channel owned by the authorizing account.
func (p *Provider) FetchIdentity(ctx context.Context, _ *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	q := url.Values{"part": {"snippet"}, "mine": {"true"}}

	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title     string `json:"title"`
				CustomURL string `json:"customUrl"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := providers.GetJSON(ctx, p.httpClient, p.apiBase+"/channels?"+q.Encode(), token.AccessToken, "youtube channels", &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, domain.ErrNoYouTubeChannel
	}

	ch := resp.Items[0]
	return &domain.OAuthIdentity{
		PlatformUserID: ch.ID,
		DisplayName:    ch.Snippet.Title,
		Username:       ch.Snippet.CustomURL,
		Details: domain.YouTubeDetails{
			ChannelID:    ch.ID,
			ChannelTitle: ch.Snippet.Title,
		},
	}, nil
}

// RefreshToken runs the refresh_token grant against Google.
func (p *Provider) RefreshToken(ctx context.Context, app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	cfg := providers.OAuth2Config(app, p.endpoint, "", DefaultScopes)
	return providers.Refresh(ctx, p.httpClient, cfg, creds.RefreshToken)
}
