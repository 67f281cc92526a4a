// Package api exposes the agent pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/pkg/agent"
	"warden/pkg/logging"
	"warden/pkg/storage"
)

// Server wires the agent service into an HTTP listener.
type Server struct {
	service    *agent.Service
	store      *storage.Store
	logger     *logging.Logger
	httpServer *http.Server
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Address to listen on (default: 127.0.0.1:4806)
	Address string

	Service *agent.Service
	Store   *storage.Store
	Logger  *logging.Logger
}

// NewServer creates the API server and its routes.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:4806"
	}

	s := &Server{
		service: cfg.Service,
		store:   cfg.Store,
		logger:  cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/agents/{id}", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Post("/cancel", s.handleCancel)
		r.Get("/memory", s.handleGetMemory)
		r.Delete("/memory", s.handleClearMemory)
		r.Put("/permissions", s.handleSetPermissions)
		r.Get("/permissions", s.handleGetPermissions)
		r.Get("/events", s.handleEvents)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info(logging.CategoryAPI, "server_started", "", "listening on "+s.httpServer.Addr, nil)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
