package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/socialconnect/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	cfg        Config
	logger     *slog.Logger

	// Services
	authService         driving.AuthService
	auth                *AuthMiddleware
	oauthService        driving.OAuthService
	credentialService   driving.CredentialService
	tokenRefreshService driving.TokenRefreshService

	cookies *VerifierCookies

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AppURL is the frontend the OAuth callback redirects back to.
	AppURL string

	// CronSecret guards the token refresh endpoint. Empty disables the check.
	CronSecret string

	// SessionCookieName is the cookie holding the session JWT.
	SessionCookieName string

	AllowedOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		Version:           "dev",
		AppURL:            "http://localhost:3000",
		SessionCookieName: DefaultSessionCookie,
	}
}

// Services groups the driving ports the server exposes.
type Services struct {
	Auth         driving.AuthService
	OAuth        driving.OAuthService
	Credentials  driving.CredentialService
	TokenRefresh driving.TokenRefreshService
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	services Services,
	cookies *VerifierCookies,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")

	s := &Server{
		router:              http.NewServeMux(),
		cfg:                 cfg,
		logger:              logger,
		authService:         services.Auth,
		oauthService:        services.OAuth,
		credentialService:   services.Credentials,
		tokenRefreshService: services.TokenRefresh,
		cookies:             cookies,
		db:                  db,
		redisClient:         redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.cfg.AllowedOrigins) > 0 {
		h = NewCORSMiddleware(s.cfg.AllowedOrigins).Handler(h)
	}
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return NewLoggingMiddleware(s.logger).Handler(h)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.authService, s.cfg.SessionCookieName)
	s.auth = authMiddleware

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// OAuth flow. Missing callers are reported by the service as codes.
	s.router.Handle("POST /oauth/{platform}/auth",
		authMiddleware.Identify(http.HandlerFunc(s.handleOAuthInitiate)))
	s.router.Handle("GET /oauth/{platform}/callback",
		authMiddleware.Identify(http.HandlerFunc(s.handleOAuthCallback)))

	// Credential endpoints (authenticated)
	s.router.Handle("GET /credentials/status",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCredentialStatus)))
	s.router.Handle("GET /credentials/health-check",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCredentialHealth)))
	s.router.Handle("POST /credentials/{platform}/verify",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleVerifyCredentials)))
	s.router.Handle("DELETE /credentials/{platform}/disconnect",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleDisconnect))))

	// Scheduler hook, guarded by the cron secret
	s.router.HandleFunc("GET /cron/token-refresh", s.handleTokenRefreshCron)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
