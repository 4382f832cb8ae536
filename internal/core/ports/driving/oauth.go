package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// OAuthService drives platform connection attempts.
// It issues state and PKCE on initiation and turns a provider callback into
// saved credentials.
type OAuthService interface {
	// Initiate starts an authorization attempt.
	// Returns an authorization URL to redirect the user to, and the PKCE
	// verifier the caller must hand to the browser in a short-lived cookie.
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)

	// Callback completes an attempt from the provider redirect.
	// Every failure is an *OAuthError carrying a redirect code.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)
}

// InitiateRequest starts an authorization attempt for a platform.
type InitiateRequest struct {
	Caller   *domain.RequestContext
	Platform string
}

// InitiateResponse contains the authorization URL and state.
// @Description Response containing the OAuth authorization URL
type InitiateResponse struct {
	// URL is the provider authorization URL.
	URL string `json:"url" example:"https://www.linkedin.com/oauth/v2/authorization?client_id=..."`

	// State is the CSRF token that will be returned in the callback.
	State string `json:"state" example:"Xk3c9v..."`

	// ExpiresAt is when the state expires.
	ExpiresAt time.Time `json:"expires_at" example:"2024-01-15T10:10:00Z"`

	// Platform is the normalized platform.
	Platform domain.Platform `json:"-"`

	// Verifier is the PKCE code verifier. Never serialized; the HTTP layer
	// seals it into the verifier cookie.
	Verifier string `json:"-"`
}

// CallbackRequest carries the provider redirect parameters.
// @Description OAuth callback parameters from provider redirect
type CallbackRequest struct {
	Caller   *domain.RequestContext `json:"-"`
	Platform string                 `json:"platform" example:"linkedin"`

	// Code is the authorization code (oauth_verifier for Twitter).
	Code string `json:"code" example:"AQT..."`

	// State is the CSRF token (oauth_token for Twitter).
	State string `json:"state" example:"Xk3c9v..."`

	// Error is set if the provider reported a failure or denial.
	Error string `json:"error,omitempty" example:"access_denied"`

	// ErrorDescription provides details about the error.
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`

	// Verifier is the PKCE verifier read from the cookie. Empty when absent.
	Verifier string `json:"-"`
}

// CallbackResponse is the result of a completed connection.
// @Description Response after a successful platform connection
type CallbackResponse struct {
	Platform    domain.Platform           `json:"platform" example:"linkedin"`
	Credentials *domain.CredentialSummary `json:"credentials"`
	Stage       domain.ConnectionStage    `json:"stage" example:"CREDENTIALS_SAVED"`
	Message     string                    `json:"message" example:"Connected LinkedIn as Ada Lovelace"`
}

// Callback redirect codes
const (
	CodeUnauthorized            = "unauthorized"
	CodeNoWorkspace             = "no_workspace"
	CodeInsufficientPermissions = "insufficient_permissions"
	CodeUserDenied              = "user_denied"
	CodeMissingParams           = "missing_params"
	CodeCSRFCheckFailed         = "csrf_check_failed"
	CodeMissingVerifier         = "missing_verifier"
	CodeConfigMissing           = "config_missing"
	CodeInvalidPlatform         = "invalid_platform"
	CodeTokenExchangeFailed     = "token_exchange_failed"
	CodeGetUserFailed           = "get_user_failed"
	CodeNoFacebookPages         = "no_facebook_pages"
	CodeNoInstagramBusiness     = "no_instagram_business"
	CodeSaveFailed              = "save_failed"
	CodeCallbackError           = "callback_error"
)

// Initiation API codes
const (
	APICodeNotAuthenticated        = "NOT_AUTHENTICATED"
	APICodeNoWorkspace             = "NO_WORKSPACE"
	APICodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	APICodeInvalidPlatform         = "INVALID_PLATFORM"
	APICodeConfigMissing           = "CONFIG_MISSING"
	APICodeInternalError           = "INTERNAL_ERROR"
)

// OAuthError represents an OAuth-specific error.
// Code is safe to show to the browser; Err keeps the detail for logs.
type OAuthError struct {
	Code        string `json:"code" example:"csrf_check_failed"`
	Description string `json:"error" example:"The state parameter is invalid or expired"`

	// Stage is the terminal stage the attempt ended in, when known.
	Stage domain.ConnectionStage `json:"-"`
	Err   error                  `json:"-"`
}

func (e *OAuthError) Error() string {
	msg := e.Code
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}
