package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// NewHTTPClient returns the client adapters use when none is injected.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// UpstreamError describes a failed provider call. It matches domain.ErrUpstream.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == domain.ErrUpstream
}

// Do sends req and decodes a 2xx JSON body into out. Any other status, or a
// body that does not decode, is an *UpstreamError.
func Do(client *http.Client, req *http.Request, op string, out any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: truncate(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return nil
}

// GetJSON issues a GET with a bearer token.
func GetJSON(ctx context.Context, client *http.Client, rawURL, accessToken, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return Do(client, req, op, out)
}

// PostForm issues a form-encoded POST.
func PostForm(ctx context.Context, client *http.Client, rawURL string, form url.Values, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return Do(client, req, op, out)
}

// OAuth2Config builds an x/oauth2 config from the registered app.
func OAuth2Config(app *driven.PlatformApp, endpoint oauth2.Endpoint, redirectURI string, defaultScopes []string) *oauth2.Config {
	scopes := defaultScopes
	if len(app.Scopes) > 0 {
		scopes = app.Scopes
	}
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}
}

// WithClient makes x/oauth2 send its token requests through client.
func WithClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// ChallengeOptions adds the S256 code challenge to an authorization URL.
func ChallengeOptions(challenge string) []oauth2.AuthCodeOption {
	if challenge == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", domain.ChallengeMethodS256),
	}
}

// Exchange trades an authorization code through x/oauth2.
func Exchange(ctx context.Context, client *http.Client, cfg *oauth2.Config, code, verifier string) (*domain.OAuthToken, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := cfg.Exchange(WithClient(ctx, client), code, opts...)
	if err != nil {
		return nil, wrapOAuth2("token exchange", err)
	}
	return FromOAuth2(tok)
}

// Refresh runs the refresh_token grant through x/oauth2.
func Refresh(ctx context.Context, client *http.Client, cfg *oauth2.Config, refreshToken string) (*domain.OAuthToken, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("token refresh: %w: no refresh token", domain.ErrRefreshUnavailable)
	}
	src := cfg.TokenSource(WithClient(ctx, client), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, wrapOAuth2("token refresh", err)
	}
	return FromOAuth2(tok)
}

// FromOAuth2 converts an x/oauth2 token. A zero expiry means the token does not expire.
func FromOAuth2(tok *oauth2.Token) (*domain.OAuthToken, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, &UpstreamError{Op: "token response", Body: "missing access_token"}
	}
	out := &domain.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		out.ExpiresAt = &exp
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out, nil
}

// ExpiresIn converts an expires_in seconds value relative to now. Zero means no expiry.
func ExpiresIn(now time.Time, seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := now.Add(time.Duration(seconds) * time.Second)
	return &t
}

func wrapOAuth2(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		body := re.ErrorCode
		if re.ErrorDescription != "" {
			body += ": " + re.ErrorDescription
		}
		if body == "" {
			body = truncate(string(re.Body))
		}
		return &UpstreamError{Op: op, Status: status, Body: body}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func truncate(s string) string {
	const limit = 512
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
