package webui

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medextract/logging"
)

// RequestIDHeader carries the per-request id to and from clients.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware assigns each request an X-Request-ID, logs it with
// method, path, status and duration, and turns handler panics into a 500
// error envelope.
//
// Thread-safe for concurrent HTTP requests.
type LoggingMiddleware struct {
	logger    *logging.Logger
	skipPaths map[string]bool
}

// LoggingMiddlewareConfig holds configuration for the LoggingMiddleware.
type LoggingMiddlewareConfig struct {
	// SkipPaths are paths logged at debug level only (e.g. health checks)
	SkipPaths []string
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger *logging.Logger, config LoggingMiddlewareConfig) *LoggingMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skipPaths[p] = true
	}
	return &LoggingMiddleware{logger: logger.Named("http"), skipPaths: skipPaths}
}

// Handler wraps next with request logging and panic recovery.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set(RequestIDHeader, requestID(r))
		wrapped := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				m.logger.Error("Handler panicked",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				if !wrapped.wroteHeader {
					writeError(wrapped, http.StatusInternalServerError, errorInternal,
						"An unexpected error occurred while processing the request.", false)
				}
			}
			m.log(r, wrapped, time.Since(start))
		}()

		next.ServeHTTP(wrapped, r)
	})
}

func (m *LoggingMiddleware) log(r *http.Request, w *responseWriterWrapper, duration time.Duration) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", w.statusCode),
		zap.Duration("duration", duration),
		zap.String("remote_addr", getClientIP(r)),
		zap.Int64("bytes", w.bytesWritten),
	}
	if id := w.Header().Get(RequestIDHeader); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	switch {
	case m.skipPaths[r.URL.Path]:
		m.logger.Debug("HTTP request", fields...)
	case w.statusCode >= 500:
		m.logger.Error("HTTP request", fields...)
	case w.statusCode >= 400:
		m.logger.Warn("HTTP request", fields...)
	default:
		m.logger.Info("HTTP request", fields...)
	}
}

// requestID returns the caller's X-Request-ID when it is a UUID, otherwise
// a fresh one.
func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return uuid.NewString()
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

// WriteHeader captures the status code
func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the bytes written and ensures header is written
func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher if the underlying writer supports it
func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// getClientIP extracts the client IP from the request.
// X-Forwarded-For and X-Real-IP win over RemoteAddr for proxied requests.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
