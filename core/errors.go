package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingAuth  = "MISSING_AUTH"
	ErrCodeInvalidValue = "INVALID_VALUE"
	ErrCodeRulesFile    = "RULES_FILE"
	ErrCodeInvalidURL   = "INVALID_URL"
)

// ErrMissingAuth returns an error for missing model credentials
func ErrMissingAuth(service string) *ConfigError {
	action := fmt.Sprintf("Set the API key for %s in your .env file", service)
	if service == "openai" {
		action = "Set OPENAI_API_KEY in your .env file (BASE_LLM_URL may point at any OpenAI-compatible endpoint)"
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrInvalidValue returns an error for an out-of-range setting
func ErrInvalidValue(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s %q: %s", varName, value, reason),
		Action:  fmt.Sprintf("Fix %s in your .env file", varName),
	}
}

// ErrRulesFile returns an error for an unreadable redaction rules file
func ErrRulesFile(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeRulesFile,
		Message: fmt.Sprintf("Cannot load redaction rules from %s: %v", path, cause),
		Action:  "Check REDACTION_RULES_FILE points at a readable YAML file",
	}
}

// ErrInvalidURL returns an error for a malformed endpoint URL
func ErrInvalidURL(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Set %s to a valid http(s) URL", varName),
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
