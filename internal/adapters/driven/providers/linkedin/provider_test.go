package linkedin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

var testApp = &driven.PlatformApp{ClientID: "li-id", ClientSecret: "li-secret"}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.Client()).WithBaseURL(srv.URL)
}

func TestAuthorizationURL(t *testing.T) {
	p := New(nil)

	got, err := p.AuthorizationURL(context.Background(), testApp, driven.AuthorizationRequest{
		RedirectURI:   "https://app.example.com/api/oauth/linkedin/callback",
		State:         "state-1",
		CodeChallenge: "challenge-1",
	})
	require.NoError(t, err)

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	assert.Equal(t, "www.linkedin.com", u.Host)

	q := u.Query()
	assert.Equal(t, "li-id", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email w_member_social", q.Get("scope"))
	assert.Equal(t, "challenge-1", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "state-1", got.State)
}

func TestFlowUsesPKCE(t *testing.T) {
	p := New(nil)
	assert.Equal(t, domain.AuthFlowOAuth2PKCE, p.Flow())
	assert.True(t, p.Flow().UsesPKCE())
}

func TestExchangeCodeAndIdentity(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v2/accessToken":
			r.ParseForm()
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			assert.Equal(t, "code-1", r.PostForm.Get("code"))
			assert.Equal(t, "li-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "li-secret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "verifier-1", r.PostForm.Get("code_verifier"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"AQV","expires_in":5184000,"refresh_token":"AQW","scope":"openid,profile"}`))
		case "/v2/userinfo":
			assert.Equal(t, "Bearer AQV", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"sub":"abc123","name":"Ada Lovelace","email":"ada@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	tok, err := p.ExchangeCode(ctx, testApp, driven.ExchangeRequest{
		Code:         "code-1",
		RedirectURI:  "https://app.example.com/api/oauth/linkedin/callback",
		CodeVerifier: "verifier-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "AQV", tok.AccessToken)
	assert.Equal(t, "AQW", tok.RefreshToken)
	require.NotNil(t, tok.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), *tok.ExpiresAt, time.Minute)

	id, err := p.FetchIdentity(ctx, testApp, tok)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id.PlatformUserID)
	assert.Equal(t, domain.LinkedInDetails{ProfileID: "abc123", Name: "Ada Lovelace", Email: "ada@example.com"}, id.Details)
}

func TestExchangeCode_Rejected(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code expired"}`))
	})

	_, err := p.ExchangeCode(context.Background(), testApp, driven.ExchangeRequest{Code: "old"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestRefreshToken(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "AQW", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"AQV-2","expires_in":5184000,"refresh_token":"AQW-2"}`))
	})

	tok, err := p.RefreshToken(context.Background(), testApp, &domain.PlatformCredentials{RefreshToken: "AQW"})
	require.NoError(t, err)
	assert.Equal(t, "AQV-2", tok.AccessToken)
	assert.Equal(t, "AQW-2", tok.RefreshToken)
	assert.Equal(t, domain.RefreshModeRefreshToken, p.RefreshMode())
}

func TestRefreshToken_Missing(t *testing.T) {
	_, err := New(nil).RefreshToken(context.Background(), testApp, &domain.PlatformCredentials{})
	assert.ErrorIs(t, err, domain.ErrRefreshUnavailable)
}
