package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server wraps the router and HTTP server lifecycle.
type Server struct {
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer builds the router and wires the handlers.
func NewServer(handlers *Handlers, allowedOrigins []string) *Server {
	return &Server{
		handlers: handlers,
		router:   SetupRoutes(handlers, allowedOrigins),
	}
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Synchronous campaign sends hold the request open for the whole
		// dispatch, so the write timeout stays generous.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}
