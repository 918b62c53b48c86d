package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/manabi-ai/manabi/internal/answer"
	"github.com/manabi-ai/manabi/internal/auth"
	"github.com/manabi-ai/manabi/internal/config"
	"github.com/manabi-ai/manabi/internal/linker"
	"github.com/manabi-ai/manabi/internal/profile"
	"github.com/manabi-ai/manabi/internal/ratelimit"
	"github.com/manabi-ai/manabi/internal/retrieval"
	"github.com/manabi-ai/manabi/internal/telemetry"
)

// Server is the Manabi HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Generator, Broker, Limiter, Metrics.
type ServerConfig struct {
	// Required dependencies.
	Profiles   profile.Store
	Verifier   *auth.Verifier
	Client     *retrieval.Client
	Aggregator *retrieval.Aggregator
	Logger     *slog.Logger

	// Optional dependencies (nil = disabled).
	Generator answer.Generator
	Broker    *linker.Broker
	Limiter   ratelimit.Limiter
	Metrics   *telemetry.Metrics

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Authorization policy.
	TeacherDefault config.TeacherScope

	// Answer generation.
	AnswerBudget int

	// Profile mirror.
	SyncTimeout time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Profiles:            cfg.Profiles,
		Client:              cfg.Client,
		Aggregator:          cfg.Aggregator,
		Generator:           cfg.Generator,
		Broker:              cfg.Broker,
		Metrics:             cfg.Metrics,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		TeacherDefault:      cfg.TeacherDefault,
		AnswerBudget:        cfg.AnswerBudget,
		SyncTimeout:         cfg.SyncTimeout,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Retrieval endpoints are limited per subject; unauthenticated requests
	// never reach the limiter (auth middleware rejects them first).
	searchRL := ratelimit.Middleware(cfg.Limiter, subjectKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Retrieval endpoints (auth required, rate limited per subject).
	mux.Handle("POST /v1/search", searchRL(http.HandlerFunc(h.HandleSearch)))
	mux.Handle("POST /v1/chat", searchRL(http.HandlerFunc(h.HandleChat)))

	// Document link broker (auth required).
	mux.Handle("POST /v1/documents:link", searchRL(http.HandlerFunc(h.HandleLink)))

	// Profile sync (auth required).
	mux.Handle("POST /v1/profile/sync", http.HandlerFunc(h.HandleProfileSync))

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.Verifier, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// subjectKeyFunc extracts the authenticated subject for rate limiting.
func subjectKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return "search:" + claims.Subject
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
