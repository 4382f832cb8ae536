package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

func newCookies(t *testing.T, secure bool) *VerifierCookies {
	t.Helper()
	c, err := NewVerifierCookies(testCookieKey, secure)
	if err != nil {
		t.Fatalf("NewVerifierCookies: %v", err)
	}
	return c
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest("GET", "/oauth/youtube/callback", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestNewVerifierCookies_KeySize(t *testing.T) {
	if _, err := NewVerifierCookies(make([]byte, 16), false); err == nil {
		t.Error("expected error for a 16-byte key")
	}
	if _, err := NewVerifierCookies(make([]byte, VerifierCookieKeySize), false); err != nil {
		t.Errorf("unexpected error for a %d-byte key: %v", VerifierCookieKeySize, err)
	}
}

func TestVerifierCookies_RoundTrip(t *testing.T) {
	c := newCookies(t, true)

	cookie, err := c.Issue(domain.PlatformYouTube, "ws-1", "state-1", "verifier-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if cookie.Name != "oauth_youtube_verifier" || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected cookie attributes: %+v", cookie)
	}

	payload, err := c.Open(requestWith(cookie), domain.PlatformYouTube)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if payload.Verifier != "verifier-1" || payload.State != "state-1" || payload.Workspace != "ws-1" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestVerifierCookies_Missing(t *testing.T) {
	c := newCookies(t, false)

	if _, err := c.Open(requestWith(nil), domain.PlatformTikTok); !errors.Is(err, ErrCookieMissing) {
		t.Errorf("expected ErrCookieMissing, got %v", err)
	}
}

func TestVerifierCookies_Rejects(t *testing.T) {
	c := newCookies(t, false)
	good, err := c.Issue(domain.PlatformYouTube, "ws-1", "state-1", "verifier-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, _ := NewVerifierCookies([]byte("fedcba9876543210fedcba9876543210"), false)
	foreign, _ := other.Issue(domain.PlatformYouTube, "ws-1", "state-1", "verifier-1")

	tampered := []byte(good.Value)
	tampered[len(tampered)-2] ^= 0x01

	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "not base64!"},
		{"too short", "AAAA"},
		{"tampered", string(tampered)},
		{"other key", foreign.Value},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWith(&http.Cookie{Name: good.Name, Value: tt.value})
			if _, err := c.Open(req, domain.PlatformYouTube); !errors.Is(err, ErrCookieInvalid) {
				t.Errorf("expected ErrCookieInvalid, got %v", err)
			}
		})
	}
}

func TestVerifierCookies_Expired(t *testing.T) {
	c := newCookies(t, false)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	cookie, err := c.Issue(domain.PlatformTikTok, "ws-1", "state-1", "verifier-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.now = func() time.Time { return issued.Add(domain.OAuthStateTTL + time.Second) }
	req := httptest.NewRequest("GET", "/oauth/tiktok/callback", nil)
	req.AddCookie(cookie)
	if _, err := c.Open(req, domain.PlatformTikTok); !errors.Is(err, ErrCookieInvalid) {
		t.Errorf("expected expired cookie to be rejected, got %v", err)
	}
}

func TestVerifierCookies_Clear(t *testing.T) {
	c := newCookies(t, true)

	cleared := c.Clear(domain.PlatformLinkedIn)
	if cleared.Name != "oauth_linkedin_verifier" || cleared.Path != "/oauth/linkedin" || cleared.MaxAge != -1 {
		t.Errorf("unexpected clear cookie: %+v", cleared)
	}
}
