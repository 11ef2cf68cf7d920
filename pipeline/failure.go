package pipeline

import (
	"context"
	"errors"
	"fmt"

	"medextract/extraction"
	"medextract/llm"
	"medextract/pdfprocessor"
)

// Category is the coarse failure class shown to clients.
type Category string

const (
	CategoryInput    Category = "input_error"
	CategoryExternal Category = "external_error"
	CategoryTimeout  Category = "timeout"
	CategoryResponse Category = "response_error"
	CategoryInternal Category = "internal_error"
)

// Failure is the typed result of an aborted request.
type Failure struct {
	Category  Category
	Retryable bool
	// Message is safe to show to the uploader
	Message string
	// Stage is the step that failed
	Stage string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s at %s: %s: %v", f.Category, f.Stage, f.Message, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns err as a *Failure when it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classify turns a stage error into a Failure.
func classify(stage string, err error) *Failure {
	if f, ok := AsFailure(err); ok {
		return f
	}

	var (
		extractErr *pdfprocessor.ExtractionError
		emptyErr   *pdfprocessor.EmptyDocumentError
		callErr    *llm.CallError
		parseErr   *extraction.ResponseParseError
		formatErr  *extraction.ResponseFormatError
	)

	switch {
	case errors.As(err, &emptyErr):
		return &Failure{Category: CategoryInput, Stage: stage, Err: err,
			Message: "The PDF contains no extractable text. Scanned documents are not supported."}
	case errors.As(err, &extractErr):
		return &Failure{Category: CategoryInput, Stage: stage, Err: err,
			Message: "The file could not be read as a PDF document."}
	case errors.Is(err, extraction.ErrEmptyInput):
		return &Failure{Category: CategoryInput, Stage: stage, Err: err,
			Message: "The document has no text left to analyze."}
	case errors.As(err, &parseErr):
		return &Failure{Category: CategoryResponse, Stage: stage, Err: err,
			Message: "The extraction service returned an unreadable response."}
	case errors.As(err, &formatErr):
		return &Failure{Category: CategoryResponse, Stage: stage, Err: err,
			Message: "The extraction service returned data in an unexpected shape."}
	case errors.As(err, &callErr):
		return callFailure(stage, callErr)
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Category: CategoryTimeout, Retryable: true, Stage: stage, Err: err,
			Message: "Processing took too long. Please try again."}
	case errors.Is(err, context.Canceled):
		return &Failure{Category: CategoryExternal, Stage: stage, Err: err,
			Message: "The request was cancelled."}
	default:
		return &Failure{Category: CategoryInternal, Stage: stage, Err: err,
			Message: "An unexpected error occurred while processing the document."}
	}
}

func callFailure(stage string, err *llm.CallError) *Failure {
	f := &Failure{Category: CategoryExternal, Retryable: err.Retryable(), Stage: stage, Err: err}
	switch err.Kind {
	case llm.KindTimeout:
		f.Category = CategoryTimeout
		f.Message = "The extraction service timed out. Please try again."
	case llm.KindAuth:
		f.Message = "The extraction service rejected the configured credentials."
	case llm.KindRateLimit:
		f.Message = "The extraction service is rate limiting requests. Please try again later."
	case llm.KindNetwork:
		f.Message = "The extraction service could not be reached. Please try again."
	case llm.KindUpstream:
		f.Message = "The extraction service is temporarily unavailable. Please try again."
	case llm.KindEmpty:
		f.Message = "The extraction service returned an empty response. Please try again."
	case llm.KindCanceled:
		f.Message = "The request was cancelled."
	default:
		f.Message = "The extraction service rejected the request."
	}
	return f
}
