// Package server exposes previews, background preloading, user settings and
// preview sessions over a local HTTP API.
//
//	GET    /preview?url=&page=&origin=   rewritten page for the preview frame
//	POST   /preload[?wait=1]             start preloading links of a page
//	GET    /cache/stats                  preload cache statistics
//	DELETE /cache                        stop preloading and purge caches
//	GET    /settings                     current user settings
//	PUT    /settings                     update settings, re-plan preloads
//	DELETE /settings                     reset settings to defaults
//	GET    /sessions                     open previews
//	POST   /sessions/{origin}            record a preview for origin
//	DELETE /sessions/{origin}            close the preview of origin
//	DELETE /sessions/{origin}/{id}       close one preview by id
//	POST   /sessions/{origin}/expand     hand the preview over to a full page
//	GET    /metrics                      Prometheus metrics
//	GET    /healthz                      liveness
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/glimpse/internal/discover"
	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/metrics"
	"github.com/ppiankov/glimpse/internal/model"
	"github.com/ppiankov/glimpse/internal/pipeline"
	"github.com/ppiankov/glimpse/internal/preload"
	"github.com/ppiankov/glimpse/internal/session"
	"github.com/ppiankov/glimpse/internal/settings"
)

const shutdownTimeout = 10 * time.Second

// Server owns the preview pipeline, the page's preload scheduler, the
// settings store and the session table.
type Server struct {
	config    *model.Config
	logger    *log.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	pipeline  *pipeline.Pipeline
	scheduler *preload.Scheduler
	store     *settings.Store
	sessions  *session.Table
	router    *mux.Router

	mu       sync.Mutex
	settings settings.Settings
	doc      discover.Document
}

// Option customises a Server
type Option func(*Server)

// WithLogger sets the request and event logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSettingsStore overrides where settings are read and written
func WithSettingsStore(st *settings.Store) Option {
	return func(s *Server) { s.store = st }
}

// New builds a server from cfg. Settings come from cfg.Server.SettingsFile,
// or ~/.glimpse/settings.toml when unset. An unreadable settings file is
// logged and the defaults are used.
func New(cfg *model.Config, opts ...Option) (*Server, error) {
	s := &Server{
		config:   cfg,
		logger:   log.Discard(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		path := cfg.Server.SettingsFile
		if path == "" {
			p, err := settings.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		s.store = settings.NewStore(path)
	}

	st, err := s.store.Load()
	if err != nil {
		s.logger.Warnf("load settings from %s: %v (using defaults)", s.store.Path(), err)
	}
	s.settings = st

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metrics.New(s.registry)
	s.pipeline = pipeline.NewPipeline(cfg, pipeline.WithMetrics(s.metrics))
	s.scheduler = s.pipeline.NewScheduler(s.logger)
	s.sessions = session.NewTable(s.metrics)

	s.router = mux.NewRouter()
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/preview", s.handlePreview).Methods(http.MethodGet)
	r.HandleFunc("/preload", s.handlePreload).Methods(http.MethodPost)
	r.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	r.HandleFunc("/cache", s.handleCacheClear).Methods(http.MethodDelete)
	r.HandleFunc("/settings", s.handleSettingsGet).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.handleSettingsPut).Methods(http.MethodPut)
	r.HandleFunc("/settings", s.handleSettingsReset).Methods(http.MethodDelete)
	r.HandleFunc("/sessions", s.handleSessionList).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{origin}", s.handleSessionOpen).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{origin}", s.handleSessionCloseOrigin).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{origin}/expand", s.handleSessionExpand).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{origin}/{id}", s.handleSessionClose).Methods(http.MethodDelete)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.router)
}

// Settings returns the settings currently in effect
func (s *Server) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Close stops background preloading
func (s *Server) Close() {
	s.scheduler.Destroy()
}

// Run serves on cfg.Server.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Serving on http://%s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Debugf("server: shutting down")
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
