package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FairForge/warden/internal/alerting"
	"github.com/FairForge/warden/internal/auth"
	"github.com/FairForge/warden/internal/config"
	"github.com/FairForge/warden/internal/failover"
	"github.com/FairForge/warden/internal/ratelimit"
)

// Server exposes the failover manager over HTTP
type Server struct {
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server

	manager  *failover.Manager
	alerts   *alerting.Manager
	auth     *auth.Service
	limiter  *ratelimit.ClientLimiter
	registry *prometheus.Registry

	startTime time.Time
}

// NewServer wires the router. Alerts may be nil when alerting is not
// configured.
func NewServer(
	cfg config.ServerConfig,
	logger *zap.Logger,
	manager *failover.Manager,
	alerts *alerting.Manager,
	authSvc *auth.Service,
	limiter *ratelimit.ClientLimiter,
	registry *prometheus.Registry,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:    logger,
		router:    chi.NewRouter(),
		manager:   manager,
		alerts:    alerts,
		auth:      authSvc,
		limiter:   limiter,
		registry:  registry,
		startTime: time.Now(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Router returns the handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("api server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware(ratelimit.RemoteAddrKey))
	}

	s.router.Get("/healthz", s.handleHealthz)
	if s.registry != nil {
		s.router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.router.Post("/api/v1/auth/login", s.handleLogin)

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		s.registerFailoverRoutes(r)
		s.registerAlertRoutes(r)
	})
}

// logRequests is the access log middleware
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"enabled":  s.manager.Enabled(),
		"services": len(s.manager.ListServices()),
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
