package extraction

import (
	"errors"
	"strings"

	"medextract/pdfprocessor"
)

// ErrEmptyInput is returned when the sanitized text has no content.
var ErrEmptyInput = errors.New("sanitized text is empty")

// DefaultMaxInputChars bounds the document text embedded in a prompt.
const DefaultMaxInputChars = 120000

const truncationMarker = "\n[... document truncated ...]"

const systemPrompt = `You are a medical information extraction specialist.
The record you receive has already been redacted. Bracketed tokens such as [PATIENT NAME], [DOB] or [SSN] replace removed details. Never try to infer or reconstruct redacted information.
Return ONLY a single JSON object that follows the provided JSON Schema. Do not wrap it in prose.
Use null for any field that is not stated in the record. Never invent values.
For lab results copy the abnormal flag or status exactly as printed (for example "H", "L", "critical").
Put symptoms, examination findings, assessments and recommendations in clinical_findings.`

// Request is the payload for one model call.
type Request struct {
	// System is the instruction prompt
	System string

	// User embeds the schema and the sanitized document text
	User string

	// Schema is the reply schema also embedded in User
	Schema map[string]any

	// InputChars is the length of the embedded document text
	InputChars int

	// Truncated reports whether the document text was cut to fit
	Truncated bool
}

// Builder turns sanitized text into model requests. It is stateless and safe
// for concurrent use.
type Builder struct {
	maxInputChars int
}

// NewBuilder creates a Builder. maxInputChars <= 0 selects the default.
func NewBuilder(maxInputChars int) *Builder {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	return &Builder{maxInputChars: maxInputChars}
}

// Build creates the request for sanitized text.
//
// Example:
//
//	req, err := extraction.NewBuilder(0).Build(result.Text)
//	if errors.Is(err, extraction.ErrEmptyInput) {
//	    return err
//	}
func (b *Builder) Build(sanitized string) (*Request, error) {
	text := strings.TrimSpace(sanitized)
	if text == "" {
		return nil, ErrEmptyInput
	}

	text, truncated := pdfprocessor.TruncateAtBoundary(text, b.maxInputChars)
	if truncated {
		text += truncationMarker
	}

	var user strings.Builder
	user.WriteString("Extract the clinical information from the redacted medical record below.\n\n")
	user.WriteString("JSON Schema:\n")
	user.WriteString(ResponseSchemaJSON())
	user.WriteString("\n\nRedacted medical record:\n---\n")
	user.WriteString(text)
	user.WriteString("\n---\n")

	return &Request{
		System:     systemPrompt,
		User:       user.String(),
		Schema:     ResponseSchema(),
		InputChars: len(text),
		Truncated:  truncated,
	}, nil
}
