// Package twitter implements the Twitter (X) adapter on three-legged OAuth 1.0a.
package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.OAuthProvider = (*Provider)(nil)

const (
	defaultAPIBase = "https://api.twitter.com"
	maxFormBody    = 64 << 10
)

// Provider runs the request token, authorize, access token dance.
// User tokens do not expire, so there is no TokenRefresher.
type Provider struct {
	httpClient *http.Client
	apiBase    string

	// newSigner is swapped in tests to pin nonce and timestamp.
	newSigner func(key, secret string) *signer
}

// New creates a Twitter adapter. A nil client gets the default 30s client.
func New(client *http.Client) *Provider {
	if client == nil {
		client = providers.NewHTTPClient()
	}
	return &Provider{
		httpClient: client,
		apiBase:    defaultAPIBase,
		newSigner:  newSigner,
	}
}

// WithBaseURL points every endpoint at baseURL. Used against test servers.
func (p *Provider) WithBaseURL(baseURL string) *Provider {
	p.apiBase = baseURL
	return p
}

func (p *Provider) Platform() domain.Platform { return domain.PlatformTwitter }
func (p *Provider) Flow() domain.AuthFlow     { return domain.AuthFlowOAuth1 }

// signedForm POSTs a signed request and parses the form-encoded reply.
func (p *Provider) signedForm(ctx context.Context, app *driven.PlatformApp, path, token, tokenSecret string, extra map[string]string, op string) (url.Values, error) {
	endpoint := p.apiBase + path
	header, err := p.newSigner(app.ClientID, app.ClientSecret).authorize(http.MethodPost, endpoint, token, tokenSecret, extra, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: sign request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", header)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFormBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.UpstreamError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &providers.UpstreamError{Op: op, Status: resp.StatusCode, Body: "malformed response"}
	}
	return values, nil
}

// AuthorizationURL obtains a request token. The token is the state the
// callback echoes back; its secret must be kept server-side until then.
func (p *Provider) AuthorizationURL(ctx context.Context, app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error) {
	values, err := p.signedForm(ctx, app, "/oauth/request_token", "", "",
		map[string]string{"oauth_callback": req.RedirectURI}, "twitter request token")
	if err != nil {
		return nil, err
	}

	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, &providers.UpstreamError{Op: "twitter request token", Body: "missing oauth_token"}
	}
	if values.Get("oauth_callback_confirmed") != "true" {
		return nil, &providers.UpstreamError{Op: "twitter request token", Body: "callback not confirmed"}
	}

	return &driven.Authorization{
		URL:         p.apiBase + "/oauth/authorize?" + url.Values{"oauth_token": {token}}.Encode(),
		State:       token,
		TokenSecret: secret,
	}, nil
}

// ExchangeCode trades the request token and verifier for an access token.
// The reply already names the account; it is kept in Extra for FetchIdentity.
func (p *Provider) ExchangeCode(ctx context.Context, app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error) {
	values, err := p.signedForm(ctx, app, "/oauth/access_token", req.State, req.TokenSecret,
		map[string]string{"oauth_verifier": req.Code}, "twitter access token")
	if err != nil {
		return nil, err
	}

	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, &providers.UpstreamError{Op: "twitter access token", Body: "missing oauth_token"}
	}

	return &domain.OAuthToken{
		AccessToken: token,
		TokenSecret: secret,
		Extra: map[string]string{
			"user_id":     values.Get("user_id"),
			"screen_name": values.Get("screen_name"),
		},
	}, nil
}

// FetchIdentity uses the access token reply, falling back to /2/users/me.
func (p *Provider) FetchIdentity(ctx context.Context, app *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	userID := token.Extra["user_id"]
	screenName := token.Extra["screen_name"]
	name := screenName

	if userID == "" || screenName == "" {
		me, err := p.usersMe(ctx, app, token)
		if err != nil {
			return nil, err
		}
		userID, screenName, name = me.ID, me.Username, me.Name
	}

	return &domain.OAuthIdentity{
		PlatformUserID: userID,
		DisplayName:    name,
		Username:       screenName,
		Details: domain.TwitterDetails{
			AccessTokenSecret: token.TokenSecret,
			UserID:            userID,
			ScreenName:        screenName,
		},
	}, nil
}

type twitterUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (p *Provider) usersMe(ctx context.Context, app *driven.PlatformApp, token *domain.OAuthToken) (*twitterUser, error) {
	endpoint := p.apiBase + "/2/users/me"
	header, err := p.newSigner(app.ClientID, app.ClientSecret).authorize(http.MethodGet, endpoint, token.AccessToken, token.TokenSecret, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("twitter users/me: sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("twitter users/me: create request: %w", err)
	}
	req.Header.Set("Authorization", header)

	var resp struct {
		Data twitterUser `json:"data"`
	}
	if err := providers.Do(p.httpClient, req, "twitter users/me", &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, &providers.UpstreamError{Op: "twitter users/me", Body: "missing id"}
	}
	return &resp.Data, nil
}
