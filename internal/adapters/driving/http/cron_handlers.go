package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

// SweepResponse is the result of a token refresh run
// @Description Token refresh sweep result
type SweepResponse struct {
	Success bool                `json:"success" example:"true"`
	Tasks   *domain.SweepReport `json:"tasks,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// handleTokenRefreshCron godoc
// @Summary      Run the token refresh sweep
// @Description  Refreshes tokens close to expiry and removes expired OAuth states. Called by an external scheduler.
// @Tags         Cron
// @Produce      json
// @Param        secret  query     string  false  "Cron secret (or Authorization: Bearer)"
// @Success      200     {object}  SweepResponse
// @Failure      401     {object}  ErrorResponse
// @Failure      500     {object}  SweepResponse
// @Router       /cron/token-refresh [get]
func (s *Server) handleTokenRefreshCron(w http.ResponseWriter, r *http.Request) {
	if !s.cronAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid cron secret")
		return
	}

	report, err := s.tokenRefreshService.Sweep(r.Context())
	if err != nil {
		s.logger.Error("token refresh sweep failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, SweepResponse{Success: false, Error: "token refresh failed"})
		return
	}

	writeJSON(w, http.StatusOK, SweepResponse{Success: true, Tasks: report})
}

func (s *Server) cronAuthorized(r *http.Request) bool {
	if s.cfg.CronSecret == "" {
		return true
	}
	got := r.URL.Query().Get("secret")
	if got == "" {
		got = extractBearerToken(r)
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.CronSecret)) == 1
}
