package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driven"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Ensure oauthService implements OAuthService
var _ driving.OAuthService = (*oauthService)(nil)

// DefaultCallbackPath is the callback route template; %s is the platform.
const DefaultCallbackPath = "/oauth/%s/callback"

// OAuthServiceConfig holds configuration for the OAuth service.
type OAuthServiceConfig struct {
	// Providers resolves the adapter per platform.
	Providers driven.ProviderRegistry

	// PlatformConfigs retrieves OAuth app credentials.
	PlatformConfigs driven.PlatformConfigStore

	// States manages OAuth flow state.
	States driven.OAuthStateStore

	// Credentials persists the connection on success.
	Credentials driving.CredentialService

	// AuditLog receives one event per outcome (optional).
	AuditLog driven.AuditLog

	// BaseURL is the public base URL the platforms redirect back to.
	// Example: "https://app.example.com" or "http://localhost:3000"
	BaseURL string

	// CallbackPath overrides DefaultCallbackPath.
	CallbackPath string

	Logger *slog.Logger
}

// oauthService implements the OAuthService interface.
type oauthService struct {
	providers    driven.ProviderRegistry
	configs      driven.PlatformConfigStore
	states       driven.OAuthStateStore
	credentials  driving.CredentialService
	audit        auditor
	baseURL      string
	callbackPath string
	logger       *slog.Logger
	now          func() time.Time
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	callbackPath := cfg.CallbackPath
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}

	return &oauthService{
		providers:    cfg.Providers,
		configs:      cfg.PlatformConfigs,
		states:       cfg.States,
		credentials:  cfg.Credentials,
		audit:        auditor{log: cfg.AuditLog, logger: logger},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		callbackPath: callbackPath,
		logger:       logger,
		now:          time.Now,
	}
}

// redirectURI builds the callback URL registered with the platform.
func (s *oauthService) redirectURI(platform domain.Platform) string {
	return s.baseURL + fmt.Sprintf(s.callbackPath, platform)
}

// Initiate starts an authorization attempt.
// It generates state (and PKCE where the flow needs it), stores the state,
// and returns the authorization URL.
func (s *oauthService) Initiate(ctx context.Context, req driving.InitiateRequest) (*driving.InitiateResponse, error) {
	rc := req.Caller
	platform, parseErr := domain.ParsePlatform(req.Platform)

	fail := func(code, desc string, err error) error {
		e := callerEvent(rc, platform, domain.AuditOAuthInitiated, domain.AuditStatusFailed)
		e.ErrorCode = code
		s.audit.record(ctx, e)
		return &driving.OAuthError{Code: code, Description: desc, Err: err}
	}

	if !rc.IsAuthenticated() {
		return nil, fail(driving.APICodeNotAuthenticated, "authentication required", domain.ErrUnauthorized)
	}
	if !rc.HasWorkspace() {
		return nil, fail(driving.APICodeNoWorkspace, "no workspace found for user", domain.ErrNoWorkspace)
	}
	if parseErr != nil {
		return nil, fail(driving.APICodeInvalidPlatform, "unsupported platform", parseErr)
	}
	if !rc.CanManageConnections() {
		return nil, fail(driving.APICodeInsufficientPermissions, "only workspace admins can connect platforms", domain.ErrForbidden)
	}

	provider, err := s.providers.Get(platform)
	if err != nil {
		return nil, fail(driving.APICodeInvalidPlatform, "unsupported platform", err)
	}

	app, err := s.configs.Get(ctx, platform)
	if err != nil {
		s.logger.Error("platform app not configured", "platform", platform, "error", err)
		return nil, fail(driving.APICodeConfigMissing, platform.DisplayName()+" is not configured", err)
	}

	state, err := GenerateState()
	if err != nil {
		return nil, fail(driving.APICodeInternalError, "failed to start authorization", fmt.Errorf("generate state: %w", err))
	}

	var pkce *domain.PKCE
	if provider.Flow().UsesPKCE() {
		pkce, err = GeneratePKCE()
		if err != nil {
			return nil, fail(driving.APICodeInternalError, "failed to start authorization", err)
		}
	}

	redirectURI := s.redirectURI(platform)
	authReq := driven.AuthorizationRequest{
		RedirectURI: redirectURI,
		State:       state,
	}
	if pkce != nil {
		authReq.CodeChallenge = pkce.Challenge
	}

	auth, err := provider.AuthorizationURL(ctx, app, authReq)
	if err != nil {
		s.logger.Error("failed to build authorization url", "platform", platform, "error", err)
		return nil, fail(driving.APICodeInternalError, "failed to start authorization", err)
	}

	record := &domain.OAuthState{
		State:       auth.State,
		WorkspaceID: rc.WorkspaceID,
		UserID:      rc.UserID,
		Platform:    platform,
		TokenSecret: auth.TokenSecret,
		RedirectURI: redirectURI,
		CreatedAt:   s.now(),
	}
	record.ExpiresAt = record.CreatedAt.Add(domain.OAuthStateTTL)
	if pkce != nil {
		record.CodeChallenge = pkce.Challenge
		record.ChallengeMethod = pkce.Method
	}

	if err := s.states.Create(ctx, record); err != nil {
		s.logger.Error("failed to save oauth state", "platform", platform, "error", err)
		return nil, fail(driving.APICodeInternalError, "failed to start authorization", err)
	}

	s.audit.record(ctx, callerEvent(rc, platform, domain.AuditOAuthInitiated, domain.AuditStatusSuccess))
	s.logger.Info("oauth initiated",
		"platform", platform,
		"workspace_id", rc.WorkspaceID,
		"user_id", rc.UserID,
		"flow", provider.Flow(),
	)

	resp := &driving.InitiateResponse{
		URL:       auth.URL,
		State:     record.State,
		ExpiresAt: record.ExpiresAt,
		Platform:  platform,
	}
	if pkce != nil {
		resp.Verifier = pkce.Verifier
	}
	return resp, nil
}

// Callback completes an attempt: validates state, exchanges the code,
// fetches the identity and saves the credentials.
func (s *oauthService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	rc := req.Caller
	platform, parseErr := domain.ParsePlatform(req.Platform)

	fail := func(stage domain.ConnectionStage, action domain.AuditAction, code, desc string, err error) error {
		e := callerEvent(rc, platform, action, domain.AuditStatusFailed)
		e.ErrorCode = code
		s.audit.record(ctx, e)
		s.logger.Warn("oauth callback failed",
			"platform", platform,
			"stage", stage,
			"code", code,
			"error", err,
		)
		return &driving.OAuthError{Code: code, Description: desc, Stage: stage, Err: err}
	}

	if !rc.IsAuthenticated() {
		return nil, fail(domain.StageRejected, domain.AuditOAuthRejected, driving.CodeUnauthorized, "authentication required", domain.ErrUnauthorized)
	}
	if !rc.HasWorkspace() {
		return nil, fail(domain.StageRejected, domain.AuditOAuthRejected, driving.CodeNoWorkspace, "no workspace found for user", domain.ErrNoWorkspace)
	}
	if parseErr != nil {
		return nil, fail(domain.StageRejected, domain.AuditOAuthMissingParams, driving.CodeInvalidPlatform, "unsupported platform", parseErr)
	}
	if !rc.CanManageConnections() {
		return nil, fail(domain.StageRejected, domain.AuditOAuthRejected, driving.CodeInsufficientPermissions, "only workspace admins can connect platforms", domain.ErrForbidden)
	}

	if req.Error != "" {
		return nil, fail(domain.StageRejected, domain.AuditOAuthDenied, driving.CodeUserDenied, req.ErrorDescription,
			fmt.Errorf("provider returned error %q", req.Error))
	}
	if req.Code == "" || req.State == "" {
		return nil, fail(domain.StageRejected, domain.AuditOAuthMissingParams, driving.CodeMissingParams, "code and state are required", domain.ErrInvalidInput)
	}

	provider, err := s.providers.Get(platform)
	if err != nil {
		return nil, fail(domain.StageRejected, domain.AuditOAuthMissingParams, driving.CodeInvalidPlatform, "unsupported platform", err)
	}
	app, err := s.configs.Get(ctx, platform)
	if err != nil {
		return nil, fail(domain.StageRejected, domain.AuditOAuthTokenExchangeFailed, driving.CodeConfigMissing, platform.DisplayName()+" is not configured", err)
	}

	// Store outages and state failures look the same to the browser.
	st, err := s.states.ValidateAndConsume(ctx, rc.WorkspaceID, platform, req.State)
	if err != nil {
		return nil, fail(domain.StageRejected, domain.AuditOAuthCSRFFailed, driving.CodeCSRFCheckFailed, "state verification failed", err)
	}

	if provider.Flow().UsesPKCE() {
		if req.Verifier == "" {
			return nil, fail(domain.StageRejected, domain.AuditOAuthMissingVerifier, driving.CodeMissingVerifier, "verifier cookie missing", domain.ErrInvalidInput)
		}
		if subtle.ConstantTimeCompare([]byte(CodeChallenge(req.Verifier)), []byte(st.CodeChallenge)) != 1 {
			return nil, fail(domain.StageRejected, domain.AuditOAuthCSRFFailed, driving.CodeCSRFCheckFailed, "state verification failed",
				errors.New("verifier does not match stored code challenge"))
		}
	}

	token, err := provider.ExchangeCode(ctx, app, driven.ExchangeRequest{
		Code:         req.Code,
		RedirectURI:  st.RedirectURI,
		CodeVerifier: req.Verifier,
		State:        st.State,
		TokenSecret:  st.TokenSecret,
	})
	if err != nil {
		return nil, fail(domain.StageExchangeFailed, domain.AuditOAuthTokenExchangeFailed, driving.CodeTokenExchangeFailed, "token exchange failed", err)
	}

	identity, err := provider.FetchIdentity(ctx, app, token)
	if err != nil {
		code := driving.CodeGetUserFailed
		switch {
		case errors.Is(err, domain.ErrNoFacebookPages):
			code = driving.CodeNoFacebookPages
		case errors.Is(err, domain.ErrNoInstagramBusiness):
			code = driving.CodeNoInstagramBusiness
		}
		return nil, fail(domain.StageIdentityFailed, domain.AuditOAuthIdentityFailed, code, "failed to fetch account", err)
	}

	now := s.now()
	creds := &domain.PlatformCredentials{
		WorkspaceID:  rc.WorkspaceID,
		Platform:     platform,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		AccountID:    identity.PlatformUserID,
		AccountName:  accountName(identity),
		IsConnected:  true,
		ConnectedAt:  &now,
		ConnectedBy:  rc.UserID,
		ExpiresAt:    token.ExpiresAt,
		UpdatedAt:    now,
		Details:      identity.Details,
	}

	if err := s.credentials.Save(ctx, platform, creds, rc.UserID, rc.WorkspaceID); err != nil {
		return nil, fail(domain.StageSaveFailed, domain.AuditOAuthSaveFailed, driving.CodeSaveFailed, "failed to save credentials", err)
	}

	e := callerEvent(rc, platform, domain.AuditOAuthConnected, domain.AuditStatusSuccess)
	e.Metadata = map[string]string{"account_id": creds.AccountID, "account_name": creds.AccountName}
	s.audit.record(ctx, e)

	s.logger.Info("platform connected",
		"platform", platform,
		"workspace_id", rc.WorkspaceID,
		"account_id", creds.AccountID,
	)

	return &driving.CallbackResponse{
		Platform:    platform,
		Credentials: creds.ToSummary(),
		Stage:       domain.StageCredentialsSaved,
		Message:     fmt.Sprintf("Connected %s as %s", platform.DisplayName(), creds.AccountName),
	}, nil
}

// accountName picks the best display label for the connected account.
func accountName(id *domain.OAuthIdentity) string {
	switch {
	case id.Username != "":
		return id.Username
	case id.DisplayName != "":
		return id.DisplayName
	default:
		return id.PlatformUserID
	}
}
