package pdfprocessor

import (
	"errors"
	"fmt"
)

// ErrEmptyPath is returned when an empty file path is provided.
var ErrEmptyPath = errors.New("empty PDF path provided")

// ErrNotPDF is returned when the input does not start with a PDF header.
var ErrNotPDF = errors.New("input is not a PDF document")

// ExtractionError reports a document that could not be opened or decoded.
type ExtractionError struct {
	// Op names the step that failed ("open", "read", "page 3", ...).
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("pdf extraction failed (%s): %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// EmptyDocumentError reports a document whose pages yielded only whitespace.
type EmptyDocumentError struct {
	Pages int
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("no text content found in PDF (%d pages)", e.Pages)
}

// IsInputError reports whether err is an extraction or empty-document error.
func IsInputError(err error) bool {
	var ee *ExtractionError
	var ed *EmptyDocumentError
	return errors.As(err, &ee) || errors.As(err, &ed)
}
