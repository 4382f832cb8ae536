// Package meta is the Graph API client shared by the Facebook and Instagram adapters.
package meta

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// GraphVersion is the Graph API version every call is pinned to.
const GraphVersion = "v19.0"

const (
	defaultGraphURL  = "https://graph.facebook.com/" + GraphVersion
	defaultDialogURL = "https://www.facebook.com/" + GraphVersion + "/dialog/oauth"
)

// Client calls the Graph API. Every call carries appsecret_proof.
type Client struct {
	httpClient *http.Client
	graphURL   string
	dialogURL  string
	now        func() time.Time
}

// NewClient creates a Graph client. A nil http client gets the default 30s client.
func NewClient(client *http.Client) *Client {
	if client == nil {
		client = providers.NewHTTPClient()
	}
	return &Client{
		httpClient: client,
		graphURL:   defaultGraphURL,
		dialogURL:  defaultDialogURL,
		now:        time.Now,
	}
}

// WithBaseURL points the Graph and dialog endpoints at baseURL. Used against test servers.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.graphURL = baseURL + "/" + GraphVersion
	c.dialogURL = baseURL + "/" + GraphVersion + "/dialog/oauth"
	return c
}

// Endpoint is the OAuth 2.0 endpoint pair of the Facebook login dialog.
func (c *Client) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   c.dialogURL,
		TokenURL:  c.graphURL + "/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// AppSecretProof is hex(HMAC-SHA256(appSecret, accessToken)).
func AppSecretProof(appSecret, accessToken string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// Get calls a Graph path with the token and its proof as query parameters.
func (c *Client) Get(ctx context.Context, app *driven.PlatformApp, path, accessToken string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("access_token", accessToken)
	q.Set("appsecret_proof", AppSecretProof(app.ClientSecret, accessToken))

	op := "graph " + strings.TrimPrefix(path, "/")
	return providers.GetJSON(ctx, c.httpClient, c.graphURL+path+"?"+q.Encode(), "", op, out)
}

// ExchangeCode trades the dialog code for a short-lived user token and
// immediately upgrades it to a long-lived one.
func (c *Client) ExchangeCode(ctx context.Context, app *driven.PlatformApp, redirectURI, code string, scopes []string) (*domain.OAuthToken, error) {
	cfg := providers.OAuth2Config(app, c.Endpoint(), redirectURI, scopes)
	short, err := providers.Exchange(ctx, c.httpClient, cfg, code, "")
	if err != nil {
		return nil, err
	}
	long, err := c.LongLived(ctx, app, short.AccessToken)
	if err != nil {
		return nil, err
	}
	long.Scope = short.Scope
	return long, nil
}

// LongLived trades a user token for a fresh long-lived token (about 60 days).
// Re-running it on a long-lived token is how Meta tokens are renewed.
func (c *Client) LongLived(ctx context.Context, app *driven.PlatformApp, accessToken string) (*domain.OAuthToken, error) {
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {app.ClientID},
		"client_secret":     {app.ClientSecret},
		"fb_exchange_token": {accessToken},
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := providers.GetJSON(ctx, c.httpClient, c.graphURL+"/oauth/access_token?"+q.Encode(), "", "graph long-lived exchange", &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &providers.UpstreamError{Op: "graph long-lived exchange", Body: "missing access_token"}
	}

	return &domain.OAuthToken{
		AccessToken: resp.AccessToken,
		ExpiresAt:   providers.ExpiresIn(c.now(), resp.ExpiresIn),
	}, nil
}

// User is the /me node.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, app *driven.PlatformApp, accessToken string) (*User, error) {
	var u User
	if err := c.Get(ctx, app, "/me", accessToken, url.Values{"fields": {"id,name"}}, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, &providers.UpstreamError{Op: "graph me", Body: "missing id"}
	}
	return &u, nil
}

// InstagramAccount is the business account linked to a Page.
type InstagramAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Page is a Facebook Page the user manages.
type Page struct {
	ID                       string            `json:"id"`
	Name                     string            `json:"name"`
	AccessToken              string            `json:"access_token"`
	InstagramBusinessAccount *InstagramAccount `json:"instagram_business_account,omitempty"`
}

// Pages lists the Pages the user manages, with their page tokens and linked
// Instagram accounts.
func (c *Client) Pages(ctx context.Context, app *driven.PlatformApp, accessToken string) ([]Page, error) {
	params := url.Values{
		"fields": {"id,name,access_token,instagram_business_account{id,username}"},
		"limit":  {"100"},
	}

	var resp struct {
		Data []Page `json:"data"`
	}
	if err := c.Get(ctx, app, "/me/accounts", accessToken, params, &resp); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return resp.Data, nil
}
