package webui

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"medextract/pdfprocessor"
	"medextract/pipeline"
)

// multipartOverhead is allowed on top of MaxFileSize for form boundaries
// and headers.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		id = requestID(r)
		w.Header().Set(RequestIDHeader, id)
	}
	logger := s.logger.ForRequest(id)

	data, status, msg := s.readUpload(w, r)
	if msg != "" {
		logger.Info("Upload rejected", zap.Int("status", status), zap.String("reason", msg))
		writeError(w, status, errorInput, msg, false)
		return
	}
	logger.Info("Upload accepted", zap.Int("bytes", len(data)))

	res, err := s.processor.Process(pipeline.WithRequestID(r.Context(), id), data)
	if err != nil {
		f, ok := pipeline.AsFailure(err)
		if !ok {
			f = &pipeline.Failure{
				Category: pipeline.CategoryInternal,
				Message:  "An unexpected error occurred while processing the document.",
				Err:      err,
			}
		}
		writeFailure(w, f)
		return
	}

	writeSuccess(w, res.Record)
}

// readUpload returns the uploaded PDF or an HTTP status and message
// describing why it was rejected.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, int, string) {
	limit := s.config.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return nil, http.StatusRequestEntityTooLarge, tooLarge(limit)
		case errors.Is(err, http.ErrMissingFile):
			return nil, http.StatusBadRequest, "No file provided"
		default:
			return nil, http.StatusBadRequest, "Malformed upload request"
		}
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if strings.TrimSpace(header.Filename) == "" {
		return nil, http.StatusBadRequest, "No file selected"
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return nil, http.StatusBadRequest, "Only PDF files are allowed"
	}
	if header.Size > limit {
		return nil, http.StatusRequestEntityTooLarge, tooLarge(limit)
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, http.StatusBadRequest, "Could not read the uploaded file"
	}
	if int64(len(data)) > limit {
		return nil, http.StatusRequestEntityTooLarge, tooLarge(limit)
	}
	if len(data) == 0 {
		return nil, http.StatusBadRequest, "The uploaded file is empty"
	}
	if !pdfprocessor.HasPDFHeader(data) {
		return nil, http.StatusBadRequest, "Invalid PDF file"
	}
	return data, 0, ""
}

func tooLarge(limit int64) string {
	return fmt.Sprintf("File is too large (max %dMB)", limit/(1024*1024))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errorUnavailable, "Run history is not enabled", false)
		return
	}

	limit, ok := s.queryLimit(w, r)
	if !ok {
		return
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read run history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorInternal, "Could not read run history", true)
		return
	}
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to read run stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorInternal, "Could not read run history", true)
		return
	}

	writeSuccess(w, map[string]any{
		"runs":  runs,
		"stats": stats,
	})
}

// queryLimit reads ?limit, capped at HistoryMaxLimit. It writes a 400 and
// returns false when the value is not a positive integer.
func (s *Server) queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return s.config.HistoryDefaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, errorInput, "limit must be a positive integer", false)
		return 0, false
	}
	return min(n, s.config.HistoryMaxLimit), true
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, errorUnavailable, "Run metrics are not enabled", false)
		return
	}
	limit, ok := s.queryLimit(w, r)
	if !ok {
		return
	}
	writeSuccess(w, s.metrics.Snapshot(limit))
}
