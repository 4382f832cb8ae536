package http

import (
	"errors"
	"net/http"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Credential API codes
const (
	APICodeNotConnected       = "NOT_CONNECTED"
	APICodeRefreshUnavailable = "REFRESH_UNAVAILABLE"
	APICodeRefreshFailed      = "REFRESH_FAILED"
)

// DisconnectResponse confirms a disconnect
// @Description Disconnect result
type DisconnectResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"LinkedIn disconnected"`
}

// StatusListResponse lists the connection status of every platform
// @Description Connection status per platform
type StatusListResponse struct {
	WorkspaceID string                     `json:"workspace_id"`
	Platforms   []*domain.ConnectionStatus `json:"platforms"`
}

// handleDisconnect godoc
// @Summary      Disconnect a platform
// @Description  Clears the platform tokens. The credential row and audit history are kept.
// @Tags         Credentials
// @Produce      json
// @Param        platform  path      string  true  "Platform"
// @Success      200       {object}  DisconnectResponse
// @Failure      400       {object}  ErrorResponse  "INVALID_PLATFORM"
// @Failure      403       {object}  ErrorResponse  "INSUFFICIENT_PERMISSIONS"
// @Failure      404       {object}  ErrorResponse  "NOT_CONNECTED"
// @Router       /credentials/{platform}/disconnect [delete]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, driving.APICodeInvalidPlatform, "unsupported platform")
		return
	}

	rc := GetRequestContext(r.Context())
	if err := s.credentialService.Disconnect(r.Context(), platform, rc); err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, driving.APICodeInsufficientPermissions, "only workspace admins can disconnect platforms")
		case errors.Is(err, domain.ErrNotConnected):
			writeError(w, http.StatusNotFound, APICodeNotConnected, platform.DisplayName()+" is not connected")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, driving.APICodeNotAuthenticated, "authentication required")
		default:
			s.logger.Error("disconnect failed", "platform", platform, "workspace_id", rc.WorkspaceID, "error", err)
			writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to disconnect")
		}
		return
	}

	writeJSON(w, http.StatusOK, DisconnectResponse{
		Success: true,
		Message: platform.DisplayName() + " disconnected",
	})
}

// handleCredentialStatus godoc
// @Summary      Connection status
// @Description  Summarizes every platform for the caller's workspace. No tokens are returned.
// @Tags         Credentials
// @Produce      json
// @Success      200  {object}  StatusListResponse
// @Router       /credentials/status [get]
func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	rc := GetRequestContext(r.Context())
	statuses, err := s.credentialService.Status(r.Context(), rc.WorkspaceID)
	if err != nil {
		s.logger.Error("credential status failed", "workspace_id", rc.WorkspaceID, "error", err)
		writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to load connection status")
		return
	}
	writeJSON(w, http.StatusOK, StatusListResponse{WorkspaceID: rc.WorkspaceID, Platforms: statuses})
}

// handleCredentialHealth godoc
// @Summary      Connection health
// @Description  Classifies each connection as healthy, expiring, expired, failing or disconnected.
// @Tags         Credentials
// @Produce      json
// @Success      200  {object}  domain.HealthReport
// @Router       /credentials/health-check [get]
func (s *Server) handleCredentialHealth(w http.ResponseWriter, r *http.Request) {
	rc := GetRequestContext(r.Context())
	report, err := s.credentialService.HealthCheck(r.Context(), rc.WorkspaceID)
	if err != nil {
		s.logger.Error("credential health check failed", "workspace_id", rc.WorkspaceID, "error", err)
		writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to check connections")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleVerifyCredentials godoc
// @Summary      Verify and refresh
// @Description  Refreshes the platform token when it is close to expiry and returns the credential summary.
// @Tags         Credentials
// @Produce      json
// @Param        platform  path      string  true  "Platform"
// @Success      200       {object}  domain.CredentialSummary
// @Failure      404       {object}  ErrorResponse  "NOT_CONNECTED"
// @Failure      409       {object}  ErrorResponse  "REFRESH_UNAVAILABLE"
// @Failure      502       {object}  ErrorResponse  "REFRESH_FAILED"
// @Router       /credentials/{platform}/verify [post]
func (s *Server) handleVerifyCredentials(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, driving.APICodeInvalidPlatform, "unsupported platform")
		return
	}

	rc := GetRequestContext(r.Context())
	creds, err := s.credentialService.VerifyAndRefreshIfNeeded(r.Context(), rc.WorkspaceID, platform)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotConnected):
			writeError(w, http.StatusNotFound, APICodeNotConnected, platform.DisplayName()+" is not connected")
		case errors.Is(err, domain.ErrRefreshUnavailable):
			writeError(w, http.StatusConflict, APICodeRefreshUnavailable, "token expired, reconnect "+platform.DisplayName())
		case errors.Is(err, domain.ErrRefreshFailed):
			s.logger.Warn("token refresh failed", "platform", platform, "workspace_id", rc.WorkspaceID, "error", err)
			writeError(w, http.StatusBadGateway, APICodeRefreshFailed, "token refresh failed, try again")
		default:
			s.logger.Error("verify credentials failed", "platform", platform, "workspace_id", rc.WorkspaceID, "error", err)
			writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to verify credentials")
		}
		return
	}

	writeJSON(w, http.StatusOK, creds.ToSummary())
}
