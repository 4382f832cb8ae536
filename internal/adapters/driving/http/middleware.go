package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Context keys
type contextKey string

const requestContextKey contextKey = "request_context"

// DefaultSessionCookie is the session cookie set by the frontend auth client.
const DefaultSessionCookie = "sb-access-token"

// WorkspaceHeader selects a workspace when the caller belongs to several.
const WorkspaceHeader = "X-Workspace-ID"

// AuthMiddleware handles authentication and authorization
type AuthMiddleware struct {
	authService driving.AuthService
	cookieName  string
}

// NewAuthMiddleware creates a new AuthMiddleware.
// The session token is read from the Authorization header, then from cookieName.
func NewAuthMiddleware(authService driving.AuthService, cookieName string) *AuthMiddleware {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &AuthMiddleware{
		authService: authService,
		cookieName:  cookieName,
	}
}

// Authenticate validates the session and adds the request context.
// Requests without a user or workspace are rejected.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, err := m.resolve(r)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoWorkspace):
				writeError(w, http.StatusBadRequest, driving.APICodeNoWorkspace, "no workspace found for user")
			case errors.Is(err, domain.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, driving.APICodeNotAuthenticated, "token expired")
			case errors.Is(err, domain.ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, driving.APICodeNotAuthenticated, "authentication required")
			default:
				writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "failed to resolve workspace")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	})
}

// Identify attaches whatever caller the request carries and always continues.
// Used by the OAuth routes, where the service reports the missing pieces
// as error codes of its own.
func (m *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, err := m.resolve(r)
		if err != nil && !errors.Is(err, domain.ErrNoWorkspace) {
			rc = nil
		}
		if rc != nil {
			r = r.WithContext(WithRequestContext(r.Context(), rc))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin ensures the caller may manage the workspace's connections
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := GetRequestContext(r.Context())
		if !rc.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, driving.APICodeNotAuthenticated, "authentication required")
			return
		}

		if !rc.CanManageConnections() {
			writeError(w, http.StatusForbidden, driving.APICodeInsufficientPermissions, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) resolve(r *http.Request) (*domain.RequestContext, error) {
	workspaceID := r.Header.Get(WorkspaceHeader)
	if workspaceID == "" {
		workspaceID = r.URL.Query().Get("workspace_id")
	}
	return m.resolveIn(r, workspaceID)
}

// CallerIn authenticates the request's session against workspaceID. The
// caller comes back without a workspace when the user is not a member, and
// nil when the session itself is invalid.
func (m *AuthMiddleware) CallerIn(r *http.Request, workspaceID string) *domain.RequestContext {
	rc, err := m.resolveIn(r, workspaceID)
	if err != nil && !errors.Is(err, domain.ErrNoWorkspace) {
		return nil
	}
	if rc != nil && err != nil {
		rc.WorkspaceID = ""
		rc.Role = ""
	}
	return rc
}

func (m *AuthMiddleware) resolveIn(r *http.Request, workspaceID string) (*domain.RequestContext, error) {
	token := extractBearerToken(r)
	if token == "" {
		if c, err := r.Cookie(m.cookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	rc, err := m.authService.Authenticate(r.Context(), token, workspaceID)
	if rc != nil {
		rc.IPAddress = clientIP(r)
	}
	return rc, err
}

// WithRequestContext stores the caller on ctx.
func WithRequestContext(ctx context.Context, rc *domain.RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// GetRequestContext retrieves the caller from the request context
func GetRequestContext(ctx context.Context) *domain.RequestContext {
	if ctx == nil {
		return nil
	}
	rc, ok := ctx.Value(requestContextKey).(*domain.RequestContext)
	if !ok {
		return nil
	}
	return rc
}

// extractBearerToken extracts the Bearer token from Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// clientIP prefers the first X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Logging middleware

// LoggingMiddleware logs HTTP requests
type LoggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware
func NewLoggingMiddleware(logger *slog.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{logger: logger}
}

// Handler wraps an http.Handler with request logging
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		// Query strings carry codes and secrets; log the path only.
		m.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Recovery middleware

// RecoveryMiddleware recovers from panics
type RecoveryMiddleware struct {
	logger *slog.Logger
}

// NewRecoveryMiddleware creates a new RecoveryMiddleware
func NewRecoveryMiddleware(logger *slog.Logger) *RecoveryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryMiddleware{logger: logger}
}

// Handler wraps an http.Handler with panic recovery
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.Error("panic recovered", "path", r.URL.Path, "panic", err)
				writeError(w, http.StatusInternalServerError, driving.APICodeInternalError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS middleware

// CORSMiddleware handles CORS
type CORSMiddleware struct {
	allowedOrigins []string
}

// NewCORSMiddleware creates a new CORSMiddleware
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
	}
}

// Handler wraps an http.Handler with CORS headers
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, o := range m.allowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+WorkspaceHeader)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
