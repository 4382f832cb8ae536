// Package instagram implements the Instagram Business adapter. Login goes
// through the Facebook dialog; the account is found through a linked Page.
package instagram

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

// DefaultScopes allow publishing to the business account.
var DefaultScopes = []string{
	"instagram_basic",
	"instagram_content_publish",
	"pages_show_list",
	"pages_read_engagement",
	"business_management",
}

// Provider connects the first Instagram Business account linked to one of the user's Pages.
type Provider struct {
	graph *meta.Client
}

// New creates an Instagram adapter on a shared Graph client.
func New(graph *meta.Client) *Provider {
	return &Provider{graph: graph}
}

func (p *Provider) Platform() domain.Platform       { return domain.PlatformInstagram }
func (p *Provider) Flow() domain.AuthFlow           { return domain.AuthFlowOAuth2 }
func (p *Provider) RefreshMode() domain.RefreshMode { return domain.RefreshModeReexchange }

// AuthorizationURL builds the Facebook login dialog URL with Instagram scopes.
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

// FetchIdentity walks the user's Pages and picks the first with a linked
// business account. No Pages and no linked account are distinct errors
// because the user fixes them in different places.
func (p *Provider) FetchIdentity(ctx context.Context, app *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
	pages, err := p.graph.Pages(ctx, app, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, domain.ErrNoFacebookPages
	}

	for _, page := range pages {
		ig := page.InstagramBusinessAccount
		if ig == nil || ig.ID == "" {
			continue
		}
		return &domain.OAuthIdentity{
			PlatformUserID: ig.ID,
			DisplayName:    ig.Username,
			Username:       ig.Username,
			Details: domain.InstagramDetails{
				BusinessAccountID: ig.ID,
				Username:          ig.Username,
				PageID:            page.ID,
				PageName:          page.Name,
				PageAccessToken:   page.AccessToken,
			},
		}, nil
	}

	return nil, domain.ErrNoInstagramBusiness
}

// RefreshToken re-exchanges the long-lived user token.
func (p *Provider) RefreshToken(ctx context.Context, app *driven.PlatformApp, creds *domain.PlatformCredentials) (*domain.OAuthToken, error) {
	return p.graph.LongLived(ctx, app, creds.AccessToken)
}
