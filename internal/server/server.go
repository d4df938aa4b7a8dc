// Package server provides the HTTP API for fairscan.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/fairscan/internal/audit"
	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/internal/storage"
)

// WatchService manages the watched model directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the fairscan API.
type Server struct {
	auditor *audit.Auditor
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	limiter *rate.Limiter
	server  *http.Server

	// watch is nil when directory watching is off.
	watch WatchService
	// configPath, when set, is where watch directory changes are persisted.
	configPath string
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	auditor *audit.Auditor,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	return &Server{
		auditor:    auditor,
		storage:    store,
		config:     cfg,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst),
		watch:      watch,
		configPath: configPath,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1/audits", func(r chi.Router) {
		r.With(s.rateLimit).Post("/", s.handleCreateAudit)
		r.Get("/", s.handleListAudits)
		r.Get("/{id}", s.handleGetAudit)
		r.Delete("/{id}", s.handleDeleteAudit)
	})
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// rateLimit rejects requests beyond the configured audit submission rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
