package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces anything the filter catches.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns are compiled once. Credentials first, then identifier
// shapes that must never reach a log file even if a caller slips.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),                  // OpenAI keys
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),           // bearer tokens
	regexp.MustCompile(`\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}`),           // bcrypt hashes
	regexp.MustCompile(`(?i)((?:password|secret|token|api_key)\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                        // SSN
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), // email
}

// sensitiveKeyParts mark a field name as secret wherever they appear.
var sensitiveKeyParts = []string{
	"API_KEY",
	"APIKEY",
	"PASSWORD",
	"SECRET",
	"AUTHORIZATION",
}

// sensitiveKeySuffixes mark a field name as secret when it ends with them.
// Suffix matching keeps counters such as "prompt_tokens" readable.
var sensitiveKeySuffixes = []string{
	"TOKEN",
	"TOKEN_HASH",
}

// RedactSensitiveData scrubs credential and identifier shapes from value.
//
// Example:
//
//	RedactSensitiveData("key sk-abc123def456ghi789jkl0")
//	// "key [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	for _, pattern := range sensitivePatterns {
		value = pattern.ReplaceAllString(value, RedactedPlaceholder)
	}
	return value
}

// IsSensitiveField reports whether a field or env var name holds a secret.
//
//	IsSensitiveField("OPENAI_API_KEY")   // true
//	IsSensitiveField("UPLOAD_TOKEN")     // true
//	IsSensitiveField("prompt_tokens")    // false
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(fieldName)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(upper, part) {
			return true
		}
	}
	for _, suffix := range sensitiveKeySuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}
