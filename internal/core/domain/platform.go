package domain

import "strings"

// Platform identifies a social network a workspace can connect to.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// AllPlatforms returns every supported platform in display order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformTwitter,
		PlatformLinkedIn,
		PlatformFacebook,
		PlatformInstagram,
		PlatformTikTok,
		PlatformYouTube,
	}
}

// ParsePlatform converts a path segment into a Platform.
// Matching is case-insensitive; "x" is accepted as an alias for twitter.
func ParsePlatform(s string) (Platform, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "x" {
		return PlatformTwitter, nil
	}
	p := Platform(v)
	if !p.IsValid() {
		return "", ErrInvalidPlatform
	}
	return p, nil
}

// IsValid reports whether p is one of the supported platforms.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTwitter, PlatformLinkedIn, PlatformFacebook,
		PlatformInstagram, PlatformTikTok, PlatformYouTube:
		return true
	}
	return false
}

// DisplayName returns the human-readable platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformTwitter:
		return "Twitter"
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformFacebook:
		return "Facebook"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTikTok:
		return "TikTok"
	case PlatformYouTube:
		return "YouTube"
	default:
		return string(p)
	}
}

// AuthFlow describes the authorization protocol a platform speaks.
type AuthFlow string

const (
	// AuthFlowOAuth1 is three-legged OAuth 1.0a (request token, authorize, access token).
	AuthFlowOAuth1 AuthFlow = "oauth1"

	// AuthFlowOAuth2 is the authorization code grant without PKCE.
	AuthFlowOAuth2 AuthFlow = "oauth2"

	// AuthFlowOAuth2PKCE is the authorization code grant with an S256 code challenge.
	AuthFlowOAuth2PKCE AuthFlow = "oauth2_pkce"
)

// UsesPKCE reports whether the flow needs a verifier cookie.
func (f AuthFlow) UsesPKCE() bool {
	return f == AuthFlowOAuth2PKCE
}

// RefreshMode describes how a platform keeps access tokens alive.
type RefreshMode string

const (
	// RefreshModeNone means tokens do not expire or cannot be renewed server-side.
	RefreshModeNone RefreshMode = "none"

	// RefreshModeRefreshToken uses the refresh_token grant.
	RefreshModeRefreshToken RefreshMode = "refresh_token"

	// RefreshModeReexchange trades the current long-lived token for a new one.
	RefreshModeReexchange RefreshMode = "reexchange"
)
