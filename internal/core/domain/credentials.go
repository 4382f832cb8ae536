package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlatformCredentials is the connection a workspace holds for one platform.
// At most one row exists per (workspace, platform).
type PlatformCredentials struct {
	ID          string   `json:"id"`
	WorkspaceID string   `json:"workspace_id"`
	Platform    Platform `json:"platform"`

	AccessToken  string `json:"-"` // Never serialize
	RefreshToken string `json:"-"` // Never serialize

	// AccountID and AccountName identify the connected account for display.
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`

	IsConnected bool       `json:"is_connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	ConnectedBy string     `json:"connected_by,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	RefreshErrorCount int        `json:"refresh_error_count"`
	LastRefreshError  string     `json:"last_refresh_error,omitempty"`
	LastRefreshedAt   *time.Time `json:"last_refreshed_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Details holds the platform-specific variant. Its Platform() always
	// matches the Platform field.
	Details CredentialDetails `json:"-"`
}

// Validate checks the structural invariants of the credential set.
func (c *PlatformCredentials) Validate() error {
	if !c.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	if c.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace id is required", ErrInvalidInput)
	}
	if c.IsConnected && c.AccessToken == "" {
		return fmt.Errorf("%w: connected credentials require an access token", ErrInvalidInput)
	}
	if c.Details != nil && c.Details.Platform() != c.Platform {
		return fmt.Errorf("%w: %s details stored for %s", ErrInvalidInput, c.Details.Platform(), c.Platform)
	}
	return nil
}

// IsExpired reports whether the access token is past its expiry at now.
// Credentials without an expiry never expire.
func (c *PlatformCredentials) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Usable reports whether the credentials may be used to publish at now.
func (c *PlatformCredentials) Usable(now time.Time) bool {
	return c.IsConnected && c.AccessToken != "" && !c.IsExpired(now)
}

// ExpiresWithin reports whether the token expires before now+window.
func (c *PlatformCredentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now.Add(window))
}

// Disconnect clears the tokens and marks the connection inactive.
// The row itself is kept.
func (c *PlatformCredentials) Disconnect(now time.Time) {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.ExpiresAt = nil
	c.IsConnected = false
	c.Details = clearDetailSecrets(c.Details)
	c.UpdatedAt = now
}

// ApplyToken replaces the tokens after a successful refresh.
// An empty refresh token in tok keeps the current one.
func (c *PlatformCredentials) ApplyToken(tok *OAuthToken, now time.Time) {
	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.ExpiresAt = tok.ExpiresAt
	c.RefreshErrorCount = 0
	c.LastRefreshError = ""
	c.LastRefreshedAt = &now
	c.UpdatedAt = now
}

// CredentialDetails is the platform-specific part of a credential set.
// The interface is sealed: only the six variants in this package implement it.
type CredentialDetails interface {
	Platform() Platform
	isCredentialDetails()
}

// TwitterDetails holds the OAuth 1.0a token secret and account handle.
type TwitterDetails struct {
	AccessTokenSecret string `json:"access_token_secret"`
	UserID            string `json:"user_id"`
	ScreenName        string `json:"screen_name"`
}

// LinkedInDetails holds the member profile identifiers.
type LinkedInDetails struct {
	ProfileID string `json:"profile_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
}

// FacebookDetails holds the user and the Page the workspace publishes to.
type FacebookDetails struct {
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	PageID          string `json:"page_id,omitempty"`
	PageName        string `json:"page_name,omitempty"`
	PageAccessToken string `json:"page_access_token,omitempty"`
}

// InstagramDetails holds the business account and the Page it is linked to.
type InstagramDetails struct {
	BusinessAccountID string `json:"business_account_id"`
	Username          string `json:"username"`
	PageID            string `json:"page_id"`
	PageName          string `json:"page_name,omitempty"`
	PageAccessToken   string `json:"page_access_token,omitempty"`
}

// TikTokDetails holds the creator open id.
type TikTokDetails struct {
	OpenID      string `json:"open_id"`
	DisplayName string `json:"display_name"`
	Scope       string `json:"scope,omitempty"`
}

// YouTubeDetails holds the channel the workspace uploads to.
type YouTubeDetails struct {
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`
}

func (TwitterDetails) Platform() Platform   { return PlatformTwitter }
func (LinkedInDetails) Platform() Platform  { return PlatformLinkedIn }
func (FacebookDetails) Platform() Platform  { return PlatformFacebook }
func (InstagramDetails) Platform() Platform { return PlatformInstagram }
func (TikTokDetails) Platform() Platform    { return PlatformTikTok }
func (YouTubeDetails) Platform() Platform   { return PlatformYouTube }

func (TwitterDetails) isCredentialDetails()   {}
func (LinkedInDetails) isCredentialDetails()  {}
func (FacebookDetails) isCredentialDetails()  {}
func (InstagramDetails) isCredentialDetails() {}
func (TikTokDetails) isCredentialDetails()    {}
func (YouTubeDetails) isCredentialDetails()   {}

// MarshalDetails encodes a details variant. A nil value encodes to nil.
func MarshalDetails(d CredentialDetails) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// UnmarshalDetails decodes the variant that belongs to platform p.
// Empty data yields a nil variant.
func UnmarshalDetails(p Platform, data []byte) (CredentialDetails, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var (
		d   CredentialDetails
		err error
	)
	switch p {
	case PlatformTwitter:
		var v TwitterDetails
		err = json.Unmarshal(data, &v)
		d = v
	case PlatformLinkedIn:
		var v LinkedInDetails
		err = json.Unmarshal(data, &v)
		d = v
	case PlatformFacebook:
		var v FacebookDetails
		err = json.Unmarshal(data, &v)
		d = v
	case PlatformInstagram:
		var v InstagramDetails
		err = json.Unmarshal(data, &v)
		d = v
	case PlatformTikTok:
		var v TikTokDetails
		err = json.Unmarshal(data, &v)
		d = v
	case PlatformYouTube:
		var v YouTubeDetails
		err = json.Unmarshal(data, &v)
		d = v
	default:
		return nil, ErrInvalidPlatform
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", p, err)
	}
	return d, nil
}

// clearDetailSecrets drops token material embedded in a details variant.
func clearDetailSecrets(d CredentialDetails) CredentialDetails {
	switch v := d.(type) {
	case TwitterDetails:
		v.AccessTokenSecret = ""
		return v
	case FacebookDetails:
		v.PageAccessToken = ""
		return v
	case InstagramDetails:
		v.PageAccessToken = ""
		return v
	default:
		return d
	}
}

// CredentialSummary is the safe, token-free view of a connection.
type CredentialSummary struct {
	Platform          Platform   `json:"platform"`
	AccountID         string     `json:"account_id,omitempty"`
	AccountName       string     `json:"account_name,omitempty"`
	IsConnected       bool       `json:"is_connected"`
	ConnectedAt       *time.Time `json:"connected_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	RefreshErrorCount int        `json:"refresh_error_count"`
}

// ToSummary converts the credentials to their token-free view.
func (c *PlatformCredentials) ToSummary() *CredentialSummary {
	return &CredentialSummary{
		Platform:          c.Platform,
		AccountID:         c.AccountID,
		AccountName:       c.AccountName,
		IsConnected:       c.IsConnected,
		ConnectedAt:       c.ConnectedAt,
		ExpiresAt:         c.ExpiresAt,
		RefreshErrorCount: c.RefreshErrorCount,
	}
}
