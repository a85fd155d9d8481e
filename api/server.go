// Package api exposes the engine's read-only introspection endpoints:
// health, the current configuration, the detection point catalog, and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orthrus/config"
)

// Server serves the introspection API.
type Server struct {
	router   *mux.Router
	server   *http.Server
	provider *config.Provider
	logger   *zap.SugaredLogger
}

// NewServer creates the API server around the configuration provider.
func NewServer(provider *config.Provider, logger *zap.SugaredLogger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		provider: provider,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes sets up the API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
	s.router.HandleFunc("/api/config", s.getConfig).Methods("GET")
	s.router.HandleFunc("/api/detection-points", s.getDetectionPoints).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the route handler. Tests serve it directly.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it shuts down.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	s.logger.Infof("API server listening on %s", addr)
	return s.server.ListenAndServe()
}

// Stop shuts the API server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if s.provider.Current() == nil {
		status = "degraded"
	}

	response := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.provider.Current()
	if cfg == nil {
		http.Error(w, "no configuration loaded", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

func (s *Server) getDetectionPoints(w http.ResponseWriter, _ *http.Request) {
	cfg := s.provider.Current()
	if cfg == nil {
		http.Error(w, "no configuration loaded", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg.DetectionPoints)
}
