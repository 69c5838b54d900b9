// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/notify"
	"github.com/logward/logward/internal/pipeline"
	"github.com/logward/logward/internal/storage"
	"github.com/logward/logward/internal/stream"
	"github.com/logward/logward/pkg/utils"
)

// Server provides the HTTP API: log ingestion and query, live
// streaming, notification channel administration, and operational
// endpoints.
type Server struct {
	config     *config.ServerConfig
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger

	pipeline   *pipeline.Pipeline
	store      storage.Store
	dispatcher *notify.Dispatcher
	registry   *notify.Registry
	broker     *stream.Broker

	metricsManager *metrics.Manager
	startTime      time.Time
	version        string
}

// Dependencies bundles the components the server exposes
type Dependencies struct {
	Pipeline   *pipeline.Pipeline
	Store      storage.Store
	Dispatcher *notify.Dispatcher
	Registry   *notify.Registry
	Broker     *stream.Broker
	Metrics    *metrics.Manager
	Version    string
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.ServerConfig, deps Dependencies) *Server {
	s := &Server{
		config:         cfg,
		router:         mux.NewRouter(),
		logger:         utils.GetLogger(),
		pipeline:       deps.Pipeline,
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		registry:       deps.Registry,
		broker:         deps.Broker,
		metricsManager: deps.Metrics,
		startTime:      time.Now(),
		version:        deps.Version,
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.router,
		ReadTimeout: cfg.ReadTimeout,
		// WriteTimeout of zero keeps SSE sessions alive; bounded
		// sessions are enforced by the stream broker instead.
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Log ingestion and query
	api.HandleFunc("/logs", s.handleIngestLog).Methods("POST")
	api.HandleFunc("/logs", s.handleListLogs).Methods("GET")
	api.HandleFunc("/logs/export", s.handleExportLogs).Methods("GET")
	api.HandleFunc("/logs/stats", s.handleLogStats).Methods("GET")
	api.HandleFunc("/logs/stream", s.handleStreamLogs).Methods("GET")
	api.HandleFunc("/logs/{id:[0-9]+}", s.handleGetLog).Methods("GET")

	// Notification channel administration
	api.HandleFunc("/notifications/channels", s.handleListChannels).Methods("GET")
	api.HandleFunc("/notifications/channels/{name}", s.handleGetChannel).Methods("GET")
	api.HandleFunc("/notifications/channels/{name}", s.handleUpdateChannel).Methods("PUT")
	api.HandleFunc("/notifications/channels/{name}/reset", s.handleResetChannel).Methods("POST")
	api.HandleFunc("/notifications/test", s.handleTestChannel).Methods("POST")

	// Administration
	api.HandleFunc("/admin/purge", s.handlePurge).Methods("POST")
	api.HandleFunc("/admin/stats", s.handleSystemStats).Methods("GET")

	// Operational endpoints outside the API prefix
	if s.config.EnableHealth {
		s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
		s.router.HandleFunc("/health/detailed", s.handleDetailedHealth).Methods("GET")
	}
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}
}

// setupMiddleware configures middleware for all routes
func (s *Server) setupMiddleware() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.metricsMiddleware)
	if s.config.APIKey != "" {
		s.router.Use(s.apiKeyMiddleware)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return utils.NewAppError(utils.ErrCodeInternal, "HTTP server failed", err.Error())
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, details ...string) {
	response := map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC(),
	}
	if len(details) > 0 {
		response["details"] = details[0]
	}

	s.writeJSON(w, status, response)
}
