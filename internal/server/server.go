package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/advicechat/relay/internal/auth"
)

// Server is the HTTP front of the relay service.
type Server struct {
	Router *chi.Mux
	Port   int

	logger *slog.Logger
	httpd  *http.Server
}

// New builds the router with the standard middleware chain.
func New(port int, logger *slog.Logger, authenticator *auth.Authenticator) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if authenticator != nil {
		r.Use(AuthMiddleware(authenticator))
	}
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "advice-relay")
	})

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// Start runs the server until Shutdown or listen failure.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	s.httpd = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}
	if err := s.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpd == nil {
		return nil
	}
	return s.httpd.Shutdown(ctx)
}
