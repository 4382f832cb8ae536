package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrNoWorkspace indicates the user does not belong to a workspace
	ErrNoWorkspace = errors.New("no workspace")

	// ErrTokenExpired indicates the session token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the session token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidPlatform indicates an unknown platform was requested
	ErrInvalidPlatform = errors.New("invalid platform")

	// ErrConfigMissing indicates the platform app credentials are not configured
	ErrConfigMissing = errors.New("platform app credentials not configured")
)

// OAuth state errors. Callers outside the store see all three as a failed CSRF check.
var (
	// ErrStateNotFound indicates no state matches (workspace, platform, state)
	ErrStateNotFound = errors.New("oauth state not found")

	// ErrStateUsed indicates the state was already consumed
	ErrStateUsed = errors.New("oauth state already used")

	// ErrStateExpired indicates the state outlived its TTL
	ErrStateExpired = errors.New("oauth state expired")
)

// Credential errors. Each maps to a different remediation in the UI.
var (
	// ErrNotConnected indicates no connected credentials exist (reconnect)
	ErrNotConnected = errors.New("platform not connected")

	// ErrRefreshUnavailable indicates the token cannot be renewed server-side (reconnect)
	ErrRefreshUnavailable = errors.New("token expired and refresh unavailable")

	// ErrRefreshFailed indicates the platform rejected the refresh (retry)
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Provider errors
var (
	// ErrNoFacebookPages indicates the user manages no Facebook Pages
	ErrNoFacebookPages = errors.New("no facebook pages")

	// ErrNoInstagramBusiness indicates none of the user's Pages has a linked Instagram Business account
	ErrNoInstagramBusiness = errors.New("no instagram business account")

	// ErrNoYouTubeChannel indicates the Google account owns no YouTube channel
	ErrNoYouTubeChannel = errors.New("no youtube channel")

	// ErrUpstream indicates the platform returned an error or malformed response
	ErrUpstream = errors.New("upstream provider error")
)

// ErrLockLost indicates a held lock expired or passed to another holder
var ErrLockLost = errors.New("lock lost")

// IsStateError reports whether err is one of the OAuth state failures.
func IsStateError(err error) bool {
	return errors.Is(err, ErrStateNotFound) ||
		errors.Is(err, ErrStateUsed) ||
		errors.Is(err, ErrStateExpired)
}
