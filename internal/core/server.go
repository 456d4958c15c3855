// Package core provides the API chassis for the TextLens platform. It owns
// the chi router, the global middleware chain, and the shared response and
// validation utilities, so that cross-cutting concerns are enforced before
// requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"textlens/internal/config"
)

// RouteRegistrar mounts a group of domain handler routes onto the /v1
// router. Handlers register themselves through this indirection to avoid
// import cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies shared across the API surface.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Tokens    TokenResolver
	DB        Pinger

	// V1RouteRegistrars is populated by the application entry point before
	// MountRoutes is called.
	V1RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer initializes the server chassis. The caller mounts routes after
// construction; this separation lets tests customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger, tokens TokenResolver, db Pinger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token resolver must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Tokens:    tokens,
		DB:        db,
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the /v1 API group, and
// the public health endpoint.
//
// Middleware order matters: the recoverer is outermost so it catches panics
// from everything below, the request ID must exist before logging, and the
// principal resolver runs last so auth failures are logged with full request
// context.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware([]string{"*"}))

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.PrincipalMiddleware)
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/healthz", s.HandleHealth)
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if closer, ok := s.DB.(interface{ Close() }); ok {
		closer.Close()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
