package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
)

// Ensure Adapter implements SessionVerifier
var _ driven.SessionVerifier = (*Adapter)(nil)

// sessionClaims is the subset of a Supabase access token we rely on.
// The user id travels in the standard sub claim.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Adapter validates HS256 session tokens signed with the project JWT secret.
type Adapter struct {
	jwtSecret []byte
	audience  string
	leeway    time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) Option {
	return func(a *Adapter) { a.audience = audience }
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) Option {
	return func(a *Adapter) { a.leeway = d }
}

// NewAdapter creates a new session verifier with the given JWT secret
func NewAdapter(jwtSecret string, opts ...Option) *Adapter {
	a := &Adapter{
		jwtSecret: []byte(jwtSecret),
		leeway:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// VerifyToken validates a session JWT and extracts its claims
func (a *Adapter) VerifyToken(tokenString string) (*domain.SessionClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(a.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.SessionClaims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// GenerateToken signs a session token for userID. The identity provider
// mints real tokens; this exists for local development and tests.
func (a *Adapter) GenerateToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}
