package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialconnect/internal/adapters/driven/providers/meta"
	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

var testApp = &driven.PlatformApp{ClientID: "fb-id", ClientSecret: "fb-secret"}

func newTestProvider(t *testing.T, pages string) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("appsecret_proof"))
		switch r.URL.Path {
		case "/" + meta.GraphVersion + "/me":
			w.Write([]byte(`{"id":"u-1","name":"Ada Lovelace"}`))
		case "/" + meta.GraphVersion + "/me/accounts":
			w.Write([]byte(pages))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return New(meta.NewClient(srv.Client()).WithBaseURL(srv.URL))
}

func TestAuthorizationURL(t *testing.T) {
	p := New(meta.NewClient(nil))

	got, err := p.AuthorizationURL(context.Background(), testApp, driven.AuthorizationRequest{
		RedirectURI: "https://app.example.com/api/oauth/facebook/callback",
		State:       "state-1",
	})
	require.NoError(t, err)

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", u.Host)
	assert.Equal(t, "/"+meta.GraphVersion+"/dialog/oauth", u.Path)
	assert.Contains(t, u.Query().Get("scope"), "pages_manage_posts")
	assert.Equal(t, domain.AuthFlowOAuth2, p.Flow())
	assert.Equal(t, domain.RefreshModeReexchange, p.RefreshMode())
}

func TestFetchIdentity_FirstPage(t *testing.T) {
	p := newTestProvider(t, `{"data":[
		{"id":"p-1","name":"Analytical Engines","access_token":"page-token-1"},
		{"id":"p-2","name":"Second Page","access_token":"page-token-2"}
	]}`)

	id, err := p.FetchIdentity(context.Background(), testApp, &domain.OAuthToken{AccessToken: "user-token"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.PlatformUserID)
	assert.Equal(t, domain.FacebookDetails{
		UserID:          "u-1",
		Name:            "Ada Lovelace",
		PageID:          "p-1",
		PageName:        "Analytical Engines",
		PageAccessToken: "page-token-1",
	}, id.Details)
}

func TestFetchIdentity_NoPages(t *testing.T) {
	p := newTestProvider(t, `{"data":[]}`)

	_, err := p.FetchIdentity(context.Background(), testApp, &domain.OAuthToken{AccessToken: "user-token"})
	assert.ErrorIs(t, err, domain.ErrNoFacebookPages)
}
