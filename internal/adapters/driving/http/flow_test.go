package http

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/socialconnect/internal/core/services"
)

// flowHarness runs the real OAuth and credential services behind the router.
type flowHarness struct {
	server   *Server
	provider *mocks.MockProvider
	states   *mocks.MockOAuthStateStore
	store    *mocks.MockCredentialStore
	audit    *mocks.MockAuditLog
}

func newFlowHarness(t *testing.T, platform domain.Platform, flow domain.AuthFlow) *flowHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &flowHarness{
		provider: mocks.NewMockProvider(platform, flow),
		states:   mocks.NewMockOAuthStateStore(),
		store:    mocks.NewMockCredentialStore(),
		audit:    mocks.NewMockAuditLog(),
	}
	registry := mocks.NewMockProviderRegistry(h.provider)
	configs := mocks.NewMockPlatformConfigStore(platform)

	credentials := services.NewCredentialService(services.CredentialServiceConfig{
		Store:           h.store,
		Providers:       registry,
		PlatformConfigs: configs,
		AuditLog:        h.audit,
		Logger:          logger,
	})
	oauth := services.NewOAuthService(services.OAuthServiceConfig{
		Providers:       registry,
		PlatformConfigs: configs,
		States:          h.states,
		Credentials:     credentials,
		AuditLog:        h.audit,
		BaseURL:         "https://api.example.com",
		Logger:          logger,
	})

	cookies, err := NewVerifierCookies(testCookieKey, true)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AppURL = testAppURL
	cfg.Logger = logger
	h.server = NewServer(cfg, Services{
		Auth:        adminAuth(),
		OAuth:       oauth,
		Credentials: credentials,
	}, cookies, nil, nil)
	return h
}

// initiate starts a connection and returns the state and the attempt cookie.
// An optional workspace selects a workspace other than the caller's default.
func (h *flowHarness) initiate(t *testing.T, platform domain.Platform, workspace ...string) (string, *http.Cookie) {
	t.Helper()

	req := httptest.NewRequest("POST", "/oauth/"+string(platform)+"/auth", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	if len(workspace) > 0 {
		req.Header.Set(WorkspaceHeader, workspace[0])
	}
	rr := serve(h.server, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.NotEmpty(t, body.State)
	assert.Contains(t, body.URL, url.QueryEscape("https://api.example.com/oauth/"+string(platform)+"/callback"))

	return body.State, findCookie(rr, VerifierCookieName(platform))
}

func (h *flowHarness) callback(platform domain.Platform, query string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/oauth/"+string(platform)+"/callback?"+query, nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "admin-token"})
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	return serve(h.server, req)
}

func TestConnectFlow_LinkedInThenReplay(t *testing.T) {
	h := newFlowHarness(t, domain.PlatformLinkedIn, domain.AuthFlowOAuth2PKCE)

	state, verifierCookie := h.initiate(t, domain.PlatformLinkedIn)
	require.NotNil(t, verifierCookie, "linkedin uses PKCE")

	query := "code=auth-code&state=" + url.QueryEscape(state)
	rr := h.callback(domain.PlatformLinkedIn, query, verifierCookie)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t,
		testAppURL+"/settings?tab=accounts&oauth_success=linkedin&linkedin_connected=true",
		rr.Header().Get("Location"))

	cleared := findCookie(rr, "oauth_linkedin_verifier")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	creds, err := h.store.Get(t.Context(), "ws-1", domain.PlatformLinkedIn)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.True(t, creds.IsConnected)
	assert.Equal(t, "access-auth-code", creds.AccessToken)
	assert.Equal(t, "user-1", creds.ConnectedBy)
	require.Equal(t, 1, h.provider.ExchangeCount())
	assert.NotEmpty(t, h.provider.ExchangeCalls[0].CodeVerifier)

	// Second use of the same state changes nothing.
	rr = h.callback(domain.PlatformLinkedIn, query, verifierCookie)
	assert.Equal(t, testAppURL+"/settings?tab=accounts&oauth_error=csrf_check_failed", rr.Header().Get("Location"))
	assert.Equal(t, 1, h.provider.ExchangeCount())
	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, 1, h.audit.Count(domain.AuditOAuthCSRFFailed))
}

func TestConnectFlow_SecondWorkspace(t *testing.T) {
	h := newFlowHarness(t, domain.PlatformFacebook, domain.AuthFlowOAuth2)

	state, attempt := h.initiate(t, domain.PlatformFacebook, "ws-2")
	require.NotNil(t, attempt)
	_, ok := h.states.Get("ws-2", domain.PlatformFacebook, state)
	require.True(t, ok, "state belongs to the selected workspace")

	// The provider redirect carries only the session cookie, which
	// defaults to ws-1.
	rr := h.callback(domain.PlatformFacebook, "code=fb-code&state="+url.QueryEscape(state), attempt)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, strings.HasSuffix(rr.Header().Get("Location"), "facebook_connected=true"), rr.Header().Get("Location"))

	creds, err := h.store.Get(t.Context(), "ws-2", domain.PlatformFacebook)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "access-fb-code", creds.AccessToken)

	other, err := h.store.Get(t.Context(), "ws-1", domain.PlatformFacebook)
	require.NoError(t, err)
	assert.Nil(t, other)
	assert.Equal(t, 1, h.store.Len())
}

func TestConnectFlow_SecondWorkspaceWithoutCookie(t *testing.T) {
	h := newFlowHarness(t, domain.PlatformFacebook, domain.AuthFlowOAuth2)

	state, _ := h.initiate(t, domain.PlatformFacebook, "ws-2")

	rr := h.callback(domain.PlatformFacebook, "code=fb-code&state="+url.QueryEscape(state))
	assert.Equal(t, testAppURL+"/settings?tab=accounts&oauth_error=csrf_check_failed", rr.Header().Get("Location"))
	assert.Equal(t, 0, h.provider.ExchangeCount())
	assert.Equal(t, 0, h.store.Len())
}

func TestConnectFlow_YouTubeCarriesVerifier(t *testing.T) {
	h := newFlowHarness(t, domain.PlatformYouTube, domain.AuthFlowOAuth2PKCE)

	state, verifierCookie := h.initiate(t, domain.PlatformYouTube)
	require.NotNil(t, verifierCookie)
	assert.True(t, verifierCookie.Secure)

	stored, ok := h.states.Get("ws-1", domain.PlatformYouTube, state)
	require.True(t, ok)

	rr := h.callback(domain.PlatformYouTube, "code=yt-code&state="+url.QueryEscape(state), verifierCookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, strings.HasSuffix(rr.Header().Get("Location"), "youtube_connected=true"), rr.Header().Get("Location"))

	require.Equal(t, 1, h.provider.ExchangeCount())
	verifier := h.provider.ExchangeCalls[0].CodeVerifier
	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, stored.CodeChallenge, base64.RawURLEncoding.EncodeToString(sum[:]))
}

func TestConnectFlow_YouTubeWithoutCookie(t *testing.T) {
	h := newFlowHarness(t, domain.PlatformYouTube, domain.AuthFlowOAuth2PKCE)

	state, _ := h.initiate(t, domain.PlatformYouTube)

	rr := h.callback(domain.PlatformYouTube, "code=yt-code&state="+url.QueryEscape(state))
	assert.Equal(t, testAppURL+"/settings?tab=accounts&oauth_error=missing_verifier", rr.Header().Get("Location"))
	assert.Equal(t, 0, h.provider.ExchangeCount())
	assert.Equal(t, 0, h.store.Len())
}

func TestConnectFlow_InstagramWithoutBusinessAccount(t *testing.T) {
	h := newFlowHarness(t, domain.PlatformInstagram, domain.AuthFlowOAuth2)
	h.provider.FetchIdentityFn = func(app *driven.PlatformApp, token *domain.OAuthToken) (*domain.OAuthIdentity, error) {
		return nil, domain.ErrNoInstagramBusiness
	}

	state, _ := h.initiate(t, domain.PlatformInstagram)

	rr := h.callback(domain.PlatformInstagram, "code=ig-code&state="+url.QueryEscape(state))
	assert.Equal(t, testAppURL+"/settings?tab=accounts&oauth_error=no_instagram_business", rr.Header().Get("Location"))
	assert.Equal(t, 0, h.store.Len())
}
