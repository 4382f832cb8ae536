package domain

import "time"

// OAuthStateTTL is how long an issued state stays consumable.
// Every platform uses the same window.
const OAuthStateTTL = 10 * time.Minute

// ChallengeMethodS256 is the only PKCE challenge method we issue.
const ChallengeMethodS256 = "S256"

// OAuthState is the server-side record of one in-flight authorization attempt.
// It belongs to exactly one (workspace, platform) pair and can be consumed once.
type OAuthState struct {
	ID          string   `json:"id"`
	State       string   `json:"state"`
	WorkspaceID string   `json:"workspace_id"`
	UserID      string   `json:"user_id"`
	Platform    Platform `json:"platform"`

	// CodeChallenge and ChallengeMethod are set for PKCE flows. The verifier
	// itself never reaches the server-side store.
	CodeChallenge   string `json:"code_challenge,omitempty"`
	ChallengeMethod string `json:"challenge_method,omitempty"`

	// TokenSecret holds the OAuth 1.0a request-token secret (Twitter only).
	TokenSecret string `json:"-"`

	RedirectURI string     `json:"redirect_uri"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Used        bool       `json:"used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

// IsConsumable reports whether the state can still be consumed at now.
func (s *OAuthState) IsConsumable(now time.Time) bool {
	return !s.Used && now.Before(s.ExpiresAt)
}

// IsExpired reports whether the state is past its expiry at now.
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PKCE is a code verifier with its derived S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// OAuthToken is the normalized result of a token exchange or refresh.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string

	// TokenSecret is the OAuth 1.0a access token secret.
	TokenSecret string

	// ExpiresAt is nil when the platform issues non-expiring tokens.
	ExpiresAt *time.Time
	Scope     string

	// Extra carries provider response fields the identity step may need,
	// for example Twitter's user_id and screen_name or TikTok's open_id.
	Extra map[string]string
}

// OAuthIdentity is the connected account as reported by the platform.
type OAuthIdentity struct {
	PlatformUserID string
	DisplayName    string
	Username       string
	Details        CredentialDetails
}

// ConnectionStage is a step of a single connection attempt.
type ConnectionStage string

const (
	StageInitiated        ConnectionStage = "INITIATED"
	StageRedirected       ConnectionStage = "REDIRECTED"
	StageCallbackReceived ConnectionStage = "CALLBACK_RECEIVED"
	StageValidated        ConnectionStage = "VALIDATED"
	StageRejected         ConnectionStage = "REJECTED"
	StageTokenExchanged   ConnectionStage = "TOKEN_EXCHANGED"
	StageExchangeFailed   ConnectionStage = "EXCHANGE_FAILED"
	StageIdentityFetched  ConnectionStage = "IDENTITY_FETCHED"
	StageIdentityFailed   ConnectionStage = "IDENTITY_FAILED"
	StageCredentialsSaved ConnectionStage = "CREDENTIALS_SAVED"
	StageSaveFailed       ConnectionStage = "SAVE_FAILED"
)

// IsTerminal reports whether no further transition follows the stage.
func (s ConnectionStage) IsTerminal() bool {
	switch s {
	case StageRejected, StageExchangeFailed, StageIdentityFailed,
		StageCredentialsSaved, StageSaveFailed:
		return true
	}
	return false
}
