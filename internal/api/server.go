package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandlers serves the health endpoints.
type HealthHandlers interface {
	HandleHealth(w http.ResponseWriter, r *http.Request)
	HandleDetailed(w http.ResponseWriter, r *http.Request)
}

// NewRouter builds the HTTP router: v1 API, health and metrics.
func NewRouter(h *Handler, health HealthHandlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/detailed", health.HandleDetailed)
	}
	r.Handle("/metrics", promhttp.Handler())
	h.Register(r)
	return r
}

// Server is the HTTP server.
type Server struct {
	server *http.Server
}

// NewServer creates a new server on port.
func NewServer(handler http.Handler, port int) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
