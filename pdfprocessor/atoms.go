// Package pdfprocessor turns medical-record PDFs into page-marked plain text.
package pdfprocessor

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// pdfMagic is the first bytes of every PDF file.
var pdfMagic = []byte("%PDF")

// EstimateTokenCount provides a rough estimate of tokens in a text,
// using an average of 4 characters per token.
//
// Example:
//
//	tokens := EstimateTokenCount("Hello, world!") // Returns 3
func EstimateTokenCount(text string) int {
	return len(text) / 4
}

// FormatPageMarker returns the line that introduces page n in extracted text.
//
//	FormatPageMarker(2) // "--- Page 2 ---"
func FormatPageMarker(n int) string {
	return fmt.Sprintf("--- Page %d ---", n)
}

// HasPDFHeader reports whether data starts with the %PDF magic number,
// allowing leading whitespace some generators emit.
func HasPDFHeader(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\x00"), pdfMagic)
}

// TruncateAtBoundary shortens text to at most maxLen bytes, cutting at the
// last line break (or space) before the limit and never inside a UTF-8
// sequence. The second result reports whether anything was cut.
//
// Example:
//
//	s, cut := TruncateAtBoundary("alpha beta gamma", 12) // "alpha beta", true
func TruncateAtBoundary(text string, maxLen int) (string, bool) {
	if maxLen <= 0 {
		return "", text != ""
	}
	if len(text) <= maxLen {
		return text, false
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	head := text[:cut]

	if i := strings.LastIndexByte(head, '\n'); i > maxLen/2 {
		return strings.TrimRight(head[:i], " \t\r"), true
	}
	if i := strings.LastIndexByte(head, ' '); i > maxLen/2 {
		return head[:i], true
	}
	return head, true
}
