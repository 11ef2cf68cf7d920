package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_KEY", "BASE_LLM_URL", "EXTRACTION_MODEL", "PORT",
		"PATIENT_NAMES", "AI_TIMEOUT", "MAX_FILE_SIZE", "PDF_EXTRACT_WORKERS",
		"DEBUG_ARTIFACTS", "HISTORY_DB_PATH", "EXTRACTION_TEMPERATURE", "MAX_RETRIES",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BaseLLMURL != DefaultBaseLLMURL {
		t.Errorf("BaseLLMURL = %q, want %q", cfg.BaseLLMURL, DefaultBaseLLMURL)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.AITimeout != 90*time.Second {
		t.Errorf("AITimeout = %v, want 90s", cfg.AITimeout)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("MaxFileSize = %d, want %d", cfg.MaxFileSize, DefaultMaxFileSize)
	}
	if cfg.PatientNames != nil {
		t.Errorf("PatientNames = %v, want nil", cfg.PatientNames)
	}
	if cfg.DebugArtifacts {
		t.Error("DebugArtifacts should default to false")
	}
	if err := cfg.RequireModel(); GetErrorCode(err) != ErrCodeMissingAuth {
		t.Errorf("RequireModel() code = %q, want %q", GetErrorCode(err), ErrCodeMissingAuth)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PATIENT_NAMES", "Wing L Ho; Jane Q Public ,")
	t.Setenv("AI_TIMEOUT", "2m")
	t.Setenv("PORT", "8088")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("DEBUG_ARTIFACTS", "yes")
	t.Setenv("PDF_EXTRACT_WORKERS", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.PatientNames) != 2 || cfg.PatientNames[0] != "Wing L Ho" || cfg.PatientNames[1] != "Jane Q Public" {
		t.Errorf("PatientNames = %q", cfg.PatientNames)
	}
	if cfg.AITimeout != 2*time.Minute {
		t.Errorf("AITimeout = %v, want 2m", cfg.AITimeout)
	}
	if cfg.Addr() != "0.0.0.0:8088" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if !cfg.DebugArtifacts {
		t.Error("DebugArtifacts = false, want true")
	}
	if cfg.PDFExtractWorkers != 4 {
		t.Errorf("PDFExtractWorkers = %d, want 4", cfg.PDFExtractWorkers)
	}
	if err := cfg.RequireModel(); err != nil {
		t.Errorf("RequireModel() = %v, want nil", err)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"zero workers", "PDF_EXTRACT_WORKERS", "0"},
		{"negative retries", "MAX_RETRIES", "-1"},
		{"temperature too high", "EXTRACTION_TEMPERATURE", "3.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("LoadConfig() with %s=%s should fail", tt.key, tt.value)
			}
			if GetErrorCode(err) != ErrCodeInvalidValue {
				t.Errorf("error code = %q, want %q", GetErrorCode(err), ErrCodeInvalidValue)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"30", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"soon", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := ParseDurationEnv("TEST_DURATION", 5); got != tt.want {
				t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	if got := ExitCodeFor(nil); got != ExitCodeSuccess {
		t.Errorf("ExitCodeFor(nil) = %d", got)
	}
	wrapped := fmt.Errorf("startup: %w", ErrMissingAuth("openai"))
	if got := ExitCodeFor(wrapped); got != ExitCodeConfig {
		t.Errorf("ExitCodeFor(config error) = %d, want %d", got, ExitCodeConfig)
	}
	if got := ExitCodeFor(errors.New("boom")); got != ExitCodeError {
		t.Errorf("ExitCodeFor(other) = %d, want %d", got, ExitCodeError)
	}
}
