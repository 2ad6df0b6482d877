// Package server exposes the generation pipeline over HTTP.
//
// Caller identity comes from a trusted header set by the upstream auth
// proxy; the server performs no token verification itself. Generation
// endpoints carry a per-user rate limit and a credit pre-check so
// obviously doomed requests never reach the model provider.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowmarket/genflow/pkg/genflow"
	"github.com/flowmarket/genflow/pkg/genflow/conversation"
	"github.com/flowmarket/genflow/pkg/genflow/credit"
)

// DefaultUserHeader names the header carrying the authenticated user id.
const DefaultUserHeader = "X-User-ID"

// Server handles HTTP requests for workflow generation.
type Server struct {
	gen        *genflow.Generator
	store      conversation.Store
	ledger     credit.Ledger
	httpServer *http.Server
	logger     *slog.Logger
	limiter    *userLimiter
	userHeader string
	startTime  time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger attaches a structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithUserHeader overrides the trusted identity header.
// Default: DefaultUserHeader.
func WithUserHeader(name string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.userHeader = name
		}
	}
}

// WithRateLimit sets the per-user rate limit on generation endpoints.
// Default: 10 requests per minute with a burst of 10.
func WithRateLimit(limit rate.Limit, burst int) ServerOption {
	return func(s *Server) {
		s.limiter = newUserLimiter(limit, burst)
	}
}

// NewServer creates an HTTP server for the given generator and stores.
func NewServer(addr string, gen *genflow.Generator, store conversation.Store, ledger credit.Ledger, opts ...ServerOption) *Server {
	s := &Server{
		gen:        gen,
		store:      store,
		ledger:     ledger,
		logger:     slog.Default(),
		limiter:    newUserLimiter(rate.Every(6*time.Second), 10),
		userHeader: DefaultUserHeader,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ai/chat", s.requireUser(s.rateLimited(s.handleChat)))
	mux.HandleFunc("GET /api/ai/conversations", s.requireUser(s.handleListConversations))
	mux.HandleFunc("POST /api/ai/conversations/{id}/regenerate", s.requireUser(s.rateLimited(s.handleRegenerate)))
	mux.HandleFunc("DELETE /api/ai/conversations/{id}", s.requireUser(s.handleDeleteConversation))
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("starting http server", slog.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// requireUser resolves the caller identity from the trusted header.
// Requests without it never reach the handler.
func (s *Server) requireUser(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(s.userHeader)
		if userID == "" {
			writeError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r, userID)
	}
}

// rateLimited applies the per-user limit to generation endpoints.
func (s *Server) rateLimited(next func(http.ResponseWriter, *http.Request, string)) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		if !s.limiter.Allow(userID) {
			writeError(w, "Too many AI requests. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r, userID)
	}
}
