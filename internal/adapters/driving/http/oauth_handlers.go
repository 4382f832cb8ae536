package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// initiateStatus maps initiation codes to HTTP statuses.
var initiateStatus = map[string]int{
	driving.APICodeNotAuthenticated:        http.StatusUnauthorized,
	driving.APICodeNoWorkspace:             http.StatusBadRequest,
	driving.APICodeInvalidPlatform:         http.StatusBadRequest,
	driving.APICodeInsufficientPermissions: http.StatusForbidden,
	driving.APICodeConfigMissing:           http.StatusInternalServerError,
	driving.APICodeInternalError:           http.StatusInternalServerError,
}

// handleOAuthInitiate godoc
// @Summary      Start a platform connection
// @Description  Issues state (and PKCE for PKCE platforms) and returns the provider authorization URL. A sealed HttpOnly cookie binds the attempt to the workspace and carries the PKCE verifier.
// @Tags         OAuth
// @Produce      json
// @Param        platform  path      string  true  "Platform (twitter, linkedin, facebook, instagram, tiktok, youtube)"
// @Success      200       {object}  driving.InitiateResponse
// @Failure      400       {object}  ErrorResponse  "INVALID_PLATFORM or NO_WORKSPACE"
// @Failure      401       {object}  ErrorResponse  "NOT_AUTHENTICATED"
// @Failure      403       {object}  ErrorResponse  "INSUFFICIENT_PERMISSIONS"
// @Failure      500       {object}  ErrorResponse  "CONFIG_MISSING or INTERNAL_ERROR"
// @Router       /oauth/{platform}/auth [post]
func (s *Server) handleOAuthInitiate(w http.ResponseWriter, r *http.Request) {
	resp, err := s.oauthService.Initiate(r.Context(), driving.InitiateRequest{
		Caller:   GetRequestContext(r.Context()),
		Platform: r.PathValue("platform"),
	})
	if err != nil {
		var oerr *driving.OAuthError
		if errors.As(err, &oerr) {
			status, ok := initiateStatus[oerr.Code]
			if !ok {
				status = http.StatusInternalServerError
			}
			writeError(w, status, oerr.Code, oerr.Description)
			return
		}
		s.logger.Error("oauth initiate failed", "error", err)
		writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to start authorization")
		return
	}

	// The sealed cookie binds the attempt to this workspace for every flow
	// and carries the PKCE verifier when there is one.
	if s.cookies != nil {
		rc := GetRequestContext(r.Context())
		cookie, err := s.cookies.Issue(resp.Platform, rc.WorkspaceID, resp.State, resp.Verifier)
		if err != nil {
			s.logger.Error("failed to seal verifier cookie", "platform", resp.Platform, "error", err)
			writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to start authorization")
			return
		}
		http.SetCookie(w, cookie)
	} else if resp.Verifier != "" {
		s.logger.Error("verifier cookie codec not configured", "platform", resp.Platform)
		writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to start authorization")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      Provider redirect target
// @Description  Completes the connection and redirects to the app settings page with oauth_success or oauth_error. Twitter sends oauth_token, oauth_verifier and denied instead of state, code and error.
// @Tags         OAuth
// @Param        platform           path   string  true   "Platform"
// @Param        code               query  string  false  "Authorization code"
// @Param        state              query  string  false  "State"
// @Param        error              query  string  false  "Provider error"
// @Param        error_description  query  string  false  "Provider error detail"
// @Success      302
// @Router       /oauth/{platform}/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	platform, parseErr := domain.ParsePlatform(r.PathValue("platform"))
	if parseErr == nil && s.cookies != nil {
		// Cleared on every outcome; the verifier is single use.
		http.SetCookie(w, s.cookies.Clear(platform))
	}

	target := s.completeCallback(r, platform)
	http.Redirect(w, r, target, http.StatusFound)
}

// completeCallback runs the service and returns the redirect target.
// A panic anywhere below becomes callback_error.
func (s *Server) completeCallback(r *http.Request, platform domain.Platform) (target string) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("oauth callback panicked", "platform", platform, "panic", p)
			target = s.errorRedirect(driving.CodeCallbackError)
		}
	}()

	req := callbackParams(r, platform)
	req.Caller = GetRequestContext(r.Context())
	if attempt := s.attemptFor(r, platform, req.State); attempt != nil {
		// The provider redirect carries no workspace header, so the caller
		// is resolved against the workspace that started the attempt.
		req.Caller = s.callerFor(r, req.Caller, attempt.Workspace)
		if req.Caller != nil && req.Caller.WorkspaceID == attempt.Workspace {
			req.Verifier = attempt.Verifier
		}
	}

	resp, err := s.oauthService.Callback(r.Context(), req)
	if err != nil {
		var oerr *driving.OAuthError
		if errors.As(err, &oerr) {
			return s.errorRedirect(oerr.Code)
		}
		s.logger.Error("oauth callback failed", "platform", platform, "error", err)
		return s.errorRedirect(driving.CodeCallbackError)
	}
	return s.successRedirect(resp.Platform)
}

// callbackParams reads the provider redirect. OAuth 1.0a providers use
// their own parameter names.
func callbackParams(r *http.Request, platform domain.Platform) driving.CallbackRequest {
	q := r.URL.Query()
	req := driving.CallbackRequest{Platform: r.PathValue("platform")}

	if platform == domain.PlatformTwitter {
		req.State = q.Get("oauth_token")
		req.Code = q.Get("oauth_verifier")
		if denied := q.Get("denied"); denied != "" {
			req.Error = "access_denied"
			req.ErrorDescription = "The user denied access"
			req.State = denied
		}
		return req
	}

	req.Code = q.Get("code")
	req.State = q.Get("state")
	req.Error = q.Get("error")
	req.ErrorDescription = q.Get("error_description")
	return req
}

// attemptFor opens the sealed cookie and returns it only when it was minted
// for this state.
func (s *Server) attemptFor(r *http.Request, platform domain.Platform, state string) *verifierPayload {
	if s.cookies == nil || platform == "" || state == "" {
		return nil
	}
	payload, err := s.cookies.Open(r, platform)
	if err != nil {
		if !errors.Is(err, ErrCookieMissing) {
			s.logger.Warn("rejected verifier cookie", "platform", platform, "error", err)
		}
		return nil
	}
	if payload.State != state {
		s.logger.Warn("verifier cookie issued for another attempt", "platform", platform)
		return nil
	}
	return payload
}

// callerFor re-authenticates the session in workspaceID unless rc already
// belongs to it.
func (s *Server) callerFor(r *http.Request, rc *domain.RequestContext, workspaceID string) *domain.RequestContext {
	if workspaceID == "" || s.auth == nil {
		return rc
	}
	if rc != nil && rc.WorkspaceID == workspaceID {
		return rc
	}
	return s.auth.CallerIn(r, workspaceID)
}

func (s *Server) settingsURL() string {
	return s.cfg.AppURL + "/settings?tab=accounts"
}

func (s *Server) successRedirect(platform domain.Platform) string {
	p := url.QueryEscape(string(platform))
	return s.settingsURL() + "&oauth_success=" + p + "&" + p + "_connected=true"
}

func (s *Server) errorRedirect(code string) string {
	return s.settingsURL() + "&oauth_error=" + url.QueryEscape(code)
}
