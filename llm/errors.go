package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the model replies without content.
var ErrEmptyResponse = errors.New("model returned empty response")

// ErrorKind classifies a failed model call.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindNetwork    ErrorKind = "network"
	KindUpstream   ErrorKind = "upstream"
	KindBadRequest ErrorKind = "bad_request"
	KindEmpty      ErrorKind = "empty"
)

// CallError is a classified model call failure.
type CallError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model call failed (%s, status %d, %d attempts): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("model call failed (%s, %d attempts): %v", e.Kind, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *CallError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindNetwork, KindUpstream, KindEmpty:
		return true
	default:
		return false
	}
}

// Classify wraps err in a CallError. Errors that already are CallErrors are
// returned unchanged.
func Classify(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &CallError{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &CallError{Kind: KindCanceled, Err: err}
	case errors.Is(err, ErrEmptyResponse):
		return &CallError{Kind: KindEmpty, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CallError{Kind: kindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CallError{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallError{Kind: KindTimeout, Err: err}
	}
	return &CallError{Kind: KindNetwork, Err: err}
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUpstream
	case status == 0:
		return KindNetwork
	default:
		return KindBadRequest
	}
}
