package webui

import (
	"encoding/json"
	"net/http"

	"medextract/pipeline"
)

// Error types in the error envelope besides the pipeline categories.
const (
	errorInput        = string(pipeline.CategoryInput)
	errorInternal     = string(pipeline.CategoryInternal)
	errorUnauthorized = "unauthorized"
	errorRateLimited  = "rate_limited"
	errorNotFound     = "not_found"
	errorUnavailable  = "unavailable"
)

// SuccessResponse is the envelope of a successful API call.
type SuccessResponse struct {
	Status    string `json:"status"`
	Data      any    `json:"data"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the envelope of a failed API call.
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:    "success",
		Data:      data,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

func writeError(w http.ResponseWriter, status int, errorType, message string, retryable bool) {
	writeJSON(w, status, ErrorResponse{
		Status:    "error",
		ErrorType: errorType,
		Message:   message,
		Retryable: retryable,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// writeFailure renders a pipeline failure.
func writeFailure(w http.ResponseWriter, f *pipeline.Failure) {
	writeError(w, statusForCategory(f.Category), string(f.Category), f.Message, f.Retryable)
}

func statusForCategory(c pipeline.Category) int {
	switch c {
	case pipeline.CategoryInput:
		return http.StatusUnprocessableEntity
	case pipeline.CategoryTimeout:
		return http.StatusGatewayTimeout
	case pipeline.CategoryExternal, pipeline.CategoryResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
