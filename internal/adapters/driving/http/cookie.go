package http

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

var (
	// ErrCookieMissing is returned when the request carries no verifier cookie.
	ErrCookieMissing = errors.New("verifier cookie missing")

	// ErrCookieInvalid is returned when the cookie cannot be opened or has expired.
	ErrCookieInvalid = errors.New("verifier cookie invalid")
)

// maxCookieLen bounds the attacker-controlled data decoded from a cookie.
const maxCookieLen = 4096

// VerifierCookieKeySize is the key length COOKIE_SECRET must decode to.
const VerifierCookieKeySize = chacha20poly1305.KeySize

// verifierPayload is the sealed content of a verifier cookie.
type verifierPayload struct {
	Verifier  string `cbor:"1,keyasint"`
	State     string `cbor:"2,keyasint"`
	Workspace string `cbor:"3,keyasint"`
	Expires   int64  `cbor:"4,keyasint"`
}

// VerifierCookies seals the PKCE verifier into a short-lived, HttpOnly cookie
// scoped to one platform's callback path.
//
// Format: base64url(nonce || XChaCha20-Poly1305(cbor(payload))) with the
// cookie name as additional data, so a cookie renamed to another platform
// fails to open.
type VerifierCookies struct {
	aead   cipher.AEAD
	secure bool
	maxAge time.Duration
	now    func() time.Time
}

// NewVerifierCookies creates the codec from a 32-byte key.
// secure marks cookies Secure (production).
func NewVerifierCookies(key []byte, secure bool) (*VerifierCookies, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cookie cipher: %w", err)
	}
	return &VerifierCookies{
		aead:   aead,
		secure: secure,
		maxAge: domain.OAuthStateTTL,
		now:    time.Now,
	}, nil
}

// VerifierCookieName returns the cookie name for a platform.
func VerifierCookieName(platform domain.Platform) string {
	return "oauth_" + string(platform) + "_verifier"
}

func cookiePath(platform domain.Platform) string {
	return "/oauth/" + string(platform)
}

// Issue seals verifier for the attempt identified by state.
func (c *VerifierCookies) Issue(platform domain.Platform, workspaceID, state, verifier string) (*http.Cookie, error) {
	name := VerifierCookieName(platform)
	plain, err := cbor.Marshal(verifierPayload{
		Verifier:  verifier,
		State:     state,
		Workspace: workspaceID,
		Expires:   c.now().Add(c.maxAge).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode verifier cookie: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate cookie nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plain, []byte(name))

	return &http.Cookie{
		Name:     name,
		Value:    base64.RawURLEncoding.EncodeToString(sealed),
		Path:     cookiePath(platform),
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Open reads and authenticates the platform's verifier cookie.
func (c *VerifierCookies) Open(r *http.Request, platform domain.Platform) (*verifierPayload, error) {
	name := VerifierCookieName(platform)
	cookie, err := r.Cookie(name)
	if err != nil {
		return nil, ErrCookieMissing
	}
	if cookie.Value == "" || len(cookie.Value) > maxCookieLen {
		return nil, ErrCookieInvalid
	}

	sealed, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil || len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrCookieInvalid
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, ErrCookieInvalid
	}

	var p verifierPayload
	if err := cbor.Unmarshal(plain, &p); err != nil {
		return nil, ErrCookieInvalid
	}
	if c.now().Unix() > p.Expires {
		return nil, ErrCookieInvalid
	}
	return &p, nil
}

// Clear returns a cookie that deletes the platform's verifier cookie.
func (c *VerifierCookies) Clear(platform domain.Platform) *http.Cookie {
	return &http.Cookie{
		Name:     VerifierCookieName(platform),
		Value:    "",
		Path:     cookiePath(platform),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
