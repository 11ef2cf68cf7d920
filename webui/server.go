// Package webui serves the upload page and the JSON API around the
// extraction pipeline.
package webui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"medextract/db"
	"medextract/logging"
	"medextract/metrics"
	"medextract/pipeline"
	"medextract/webui/static"
)

// Processor runs the extraction pipeline on an uploaded PDF.
type Processor interface {
	Process(ctx context.Context, pdf []byte) (*pipeline.Result, error)
}

// HistoryReader reads run history. Implemented by *db.HistoryStore.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]db.RunRecord, error)
	Stats(ctx context.Context) (db.RunStats, error)
}

// MetricsReader reports in-memory run statistics. Implemented by *metrics.Store.
type MetricsReader interface {
	Snapshot(limit int) metrics.Snapshot
}

// ServerConfig configures the Server.
type ServerConfig struct {
	// Host to bind to (default: "127.0.0.1")
	Host string

	// Port to listen on (default: 5000)
	Port int

	// MaxFileSize caps uploaded PDFs in bytes (default: 50 MiB)
	MaxFileSize int64

	// ReadTimeout for HTTP requests (default: 60s)
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses; must outlast the model call (default: 5m)
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// ShutdownTimeout for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration

	// HistoryDefaultLimit and HistoryMaxLimit bound /api/history
	HistoryDefaultLimit int
	HistoryMaxLimit     int

	// Version is reported by /api/health
	Version string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:                "127.0.0.1",
		Port:                5000,
		MaxFileSize:         50 * 1024 * 1024,
		ReadTimeout:         60 * time.Second,
		WriteTimeout:        5 * time.Minute,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		HistoryDefaultLimit: 20,
		HistoryMaxLimit:     100,
		Version:             "dev",
	}
}

// Server is the HTTP server. It wires together:
//   - the embedded upload page at /
//   - POST /api/upload, optionally behind TokenAuth
//   - GET /api/health, plus GET /api/history and GET /api/metrics when enabled
//   - LoggingMiddleware with panic recovery around everything
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     ServerConfig
	processor  Processor
	history    HistoryReader
	metrics    MetricsReader
	auth       *TokenAuth
	logger     *logging.Logger
	started    time.Time
}

// NewServer creates a server. history and auth may be nil.
func NewServer(config ServerConfig, processor Processor, history HistoryReader, auth *TokenAuth, logger *logging.Logger) *Server {
	defaults := DefaultServerConfig()
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = defaults.MaxFileSize
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.HistoryDefaultLimit <= 0 {
		config.HistoryDefaultLimit = defaults.HistoryDefaultLimit
	}
	if config.HistoryMaxLimit <= 0 {
		config.HistoryMaxLimit = defaults.HistoryMaxLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		processor: processor,
		history:   history,
		auth:      auth,
		logger:    logger.Named("webui"),
		started:   time.Now(),
	}
	s.setupRoutes()

	loggingMw := NewLoggingMiddleware(logger, LoggingMiddlewareConfig{SkipPaths: []string{"/api/health"}})
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      loggingMw.Handler(s.mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	s.logger.Info("Web server created",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("auth_enabled", auth != nil),
		zap.Bool("history_enabled", history != nil))
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("POST /api/upload", s.protect(http.HandlerFunc(s.handleUpload)))
	s.mux.Handle("GET /api/history", s.protect(http.HandlerFunc(s.handleHistory)))
	s.mux.Handle("GET /api/metrics", s.protect(http.HandlerFunc(s.handleMetrics)))
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) protect(h http.Handler) http.Handler {
	if s.auth != nil {
		return s.auth.Middleware(h)
	}
	return h
}

// SetMetrics enables GET /api/metrics. Call before Start.
func (s *Server) SetMetrics(m MetricsReader) {
	s.metrics = m
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := static.ReadFile("index.html")
	if err != nil {
		http.Error(w, "Upload page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, errorNotFound, "Endpoint not found", false)
}

// healthResponse is the body of GET /api/health.
type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	AuthEnabled    bool   `json:"auth_enabled"`
	HistoryEnabled bool   `json:"history_enabled"`
	MetricsEnabled bool   `json:"metrics_enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Version:        s.config.Version,
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		AuthEnabled:    s.auth != nil,
		HistoryEnabled: s.history != nil,
		MetricsEnabled: s.metrics != nil,
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Web server starting", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	s.logger.Info("Web server stopped")
	return nil
}
