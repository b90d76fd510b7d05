// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/caption-studio/internal/auth"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/ratelimit"
	"github.com/caption-studio/internal/service"
)

// Service interfaces for dependency injection and testing

// GenerationSubmitter runs the generation pipeline
type GenerationSubmitter interface {
	Submit(ctx context.Context, in service.SubmitInput) (*service.SubmitResult, error)
}

// HistoryLister lists past generations of a user
type HistoryLister interface {
	List(ctx context.Context, externalID string, limit, offset int) ([]service.GenerationSummary, error)
}

// ProfileReader reads the caller's account
type ProfileReader interface {
	Me(ctx context.Context, externalID, email string) (*service.Profile, error)
}

// CreditResetter restores daily credits
type CreditResetter interface {
	Run(ctx context.Context, now time.Time) (*service.ResetResult, error)
}

// IdentitySyncer applies identity provider events
type IdentitySyncer interface {
	Handle(ctx context.Context, event *service.IdentityEvent) (*service.SyncResult, error)
}

// AdminStatsReader reads the operator dashboard
type AdminStatsReader interface {
	Get(ctx context.Context, externalID string, now time.Time) (*service.AdminStats, error)
}

// WebhookVerifier checks identity webhook signatures
type WebhookVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

// Services bundles the handlers' collaborators.
type Services struct {
	Generations GenerationSubmitter
	History     HistoryLister
	Profiles    ProfileReader
	Credits     CreditResetter
	Identity    IdentitySyncer
	Admin       AdminStatsReader
	Tokens      auth.TokenVerifier
	Webhooks    WebhookVerifier
	Gate        *ratelimit.Gate
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   Services
	config     *ServerConfig
	logger     *logging.Logger
	now        func() time.Time
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigin   string
	CronSecret      string
	DailyQuota      int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware(s.config.AllowedOrigin))
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(BodyLimitMiddleware(s.config.MaxBodyBytes))
	s.router.Use(RateLimitMiddleware(s.services.Gate))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// Signed by the identity provider instead of a user token
	api.HandleFunc("/webhooks/identity", s.handleIdentityWebhook).Methods(http.MethodPost, http.MethodOptions)

	cron := api.PathPrefix("/cron").Subrouter()
	cron.Use(auth.CronMiddleware(s.config.CronSecret))
	cron.HandleFunc("/reset-credits", s.handleResetCredits).Methods(http.MethodGet, http.MethodPost)

	user := api.NewRoute().Subrouter()
	user.Use(auth.Middleware(s.services.Tokens))
	user.HandleFunc("/generate-captions", s.handleGenerateCaptions).Methods(http.MethodPost, http.MethodOptions)
	user.HandleFunc("/repurpose", s.handleRepurpose).Methods(http.MethodPost, http.MethodOptions)
	user.HandleFunc("/user/generations", s.handleListGenerations).Methods(http.MethodGet, http.MethodOptions)
	user.HandleFunc("/user/me", s.handleMe).Methods(http.MethodGet, http.MethodOptions)
	user.HandleFunc("/user/usage", s.handleUsage).Methods(http.MethodGet, http.MethodOptions)
	user.HandleFunc("/admin/stats", s.handleAdminStats).Methods(http.MethodGet, http.MethodOptions)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "caption-studio",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
