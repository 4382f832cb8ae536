// Package facebook implements the Facebook Pages adapter.
package facebook

import (
	"context"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers"
	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers/meta"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Provider implements the interfaces.
var (
	_ driven.OAuthProvider  = (*Provider)(nil)
	_ driven.TokenRefresher = (*Provider)(nil)
)

// DefaultScopes let the workspace publish to a Page it manages.
var DefaultScopes = []string{"public_profile", "pages_show_list", "pages_read_engagement", "pages_manage_posts"}

// Provider connects a Facebook user and the first Page they manage.
type Provider struct {
	graph *meta.Client
}

// New creates a Facebook adapter on a shared Graph client.
func New(graph *meta.Client) *Provider {
	return &Provider{graph: graph}
}

func (p *Provider) Platform() domain.Platform       { return domain.PlatformFacebook }
func (p *Provider) Flow() domain.AuthFlow           { return domain.AuthFlowOAuth2 }
func (p *Provider) RefreshMode() domain.RefreshMode { return domain.RefreshModeReexchange }

// AuthorizationURL builds the Facebook login dialog URL.
func (p *Provider) AuthorizationURL(_ context.Context, app *driven.PlatformApp, req driven.AuthorizationRequest) (*driven.Authorization, error) {
	cfg := providers.OAuth2Config(app, p.graph.Endpoint(), req.RedirectURI, DefaultScopes)
	return &driven.Authorization{
		URL:   cfg.AuthCodeURL(req.State, providers.ChallengeOptions(req.CodeChallenge)...),
		State: req.State,
	}, nil
}

// ExchangeCode returns a long-lived user token.
func (p *Provider) ExchangeCode(ctx context.Context, app *driven.PlatformApp, req driven.ExchangeRequest) (*domain.OAuthToken, error) {
	return p.graph.ExchangeCode(ctx, app, req.RedirectURI, req.Code, DefaultScopes)
}

// FetchIdentity resolves the user and their first managed Page.
// A user without Pages cannot publish, so it is an error.
func (p *Provider) FetchIdentity(ctx context.Context, app *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	me, err := p.graph.Me(ctx, app, token.AccessToken)
	if err != nil {
		return nil, err
	}

	pages, err := p.graph.Pages(ctx, app, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, domain.ErrNoFacebookPages
	}
	page := pages[0]

	return &domain.OAuthIdentity{
		PlatformUserID: me.ID,
		DisplayName:    page.Name,
		Username:       me.Name,
		Details: domain.FacebookDetails{
			UserID:          me.ID,
			Name:            me.Name,
			PageID:          page.ID,
			PageName:        page.Name,
			PageAccessToken: page.AccessToken,
		},
	}, nil
}

// RefreshToken re-exchanges the long-lived user token.
func (p *Provider) RefreshToken(ctx context.Context, app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	return p.graph.LongLived(ctx, app, creds.AccessToken)
}
