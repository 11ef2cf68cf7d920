package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	// Model endpoint
	OpenAIAPIKey          string
	BaseLLMURL            string
	ExtractionModel       string
	ExtractionMaxTokens   int
	ExtractionTemperature float64
	AITimeout             time.Duration
	MaxRetries            int
	RetryDelay            time.Duration
	AllowSelfSignedCerts  bool

	// Redaction
	PatientNames       []string // identity variants redacted before generic rules
	RedactionRulesFile string   // optional YAML with extra rules and names

	// Extraction
	MaxPromptChars    int
	PDFExtractWorkers int
	PDFMaxPages       int

	// HTTP server
	Host            string
	Port            int
	MaxFileSize     int64
	UploadTokenHash string // bcrypt hash; empty disables auth

	// Diagnostics and history
	DebugArtifacts    bool
	DebugArtifactsDir string
	HistoryDBPath     string // empty disables the run history store
	HistoryRetention  int    // days; 0 keeps everything

	// Logging
	LogFile  string
	LogLevel string
	DevMode  bool
}

// Default values used when the environment leaves a key unset.
const (
	DefaultBaseLLMURL        = "https://api.openai.com/v1"
	DefaultExtractionModel   = "gpt-4o-mini"
	DefaultMaxTokens         = 4096
	DefaultPort              = 5000
	DefaultMaxFileSize int64 = 50 * 1024 * 1024
	DefaultMaxPromptChars    = 120000
)

// LoadConfig loads configuration from environment variables. Nothing is
// strictly required at load time: the model key is checked by RequireModel
// only for commands that call the model.
func LoadConfig() (*Config, error) {
	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		openAIKey = os.Getenv("OPENAI_KEY") // legacy name
	}

	cfg := &Config{
		OpenAIAPIKey:          openAIKey,
		BaseLLMURL:            GetEnvOrDefault("BASE_LLM_URL", DefaultBaseLLMURL),
		ExtractionModel:       GetEnvOrDefault("EXTRACTION_MODEL", DefaultExtractionModel),
		ExtractionMaxTokens:   ParseIntEnv("EXTRACTION_MAX_TOKENS", DefaultMaxTokens),
		ExtractionTemperature: ParseFloat64Env("EXTRACTION_TEMPERATURE", 0),
		AITimeout:             ParseDurationEnv("AI_TIMEOUT", 90),
		MaxRetries:            ParseIntEnv("MAX_RETRIES", 2),
		RetryDelay:            ParseDurationEnv("RETRY_DELAY", 1),
		AllowSelfSignedCerts:  ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),

		PatientNames:       ParseListEnv("PATIENT_NAMES"),
		RedactionRulesFile: os.Getenv("REDACTION_RULES_FILE"),

		MaxPromptChars:    ParseIntEnv("MAX_PROMPT_CHARS", DefaultMaxPromptChars),
		PDFExtractWorkers: ParseIntEnv("PDF_EXTRACT_WORKERS", 1),
		PDFMaxPages:       ParseIntEnv("PDF_MAX_PAGES", 0),

		Host:            GetEnvOrDefault("HOST", "127.0.0.1"),
		Port:            ParseIntEnv("PORT", DefaultPort),
		MaxFileSize:     ParseInt64Env("MAX_FILE_SIZE", DefaultMaxFileSize),
		UploadTokenHash: os.Getenv("UPLOAD_TOKEN_HASH"),

		DebugArtifacts:    ParseBoolEnv("DEBUG_ARTIFACTS", false),
		DebugArtifactsDir: GetEnvOrDefault("DEBUG_ARTIFACTS_DIR", "./debug"),
		HistoryDBPath:     os.Getenv("HISTORY_DB_PATH"),
		HistoryRetention:  ParseIntEnv("HISTORY_RETENTION_DAYS", 30),

		LogFile:  GetEnvOrDefault("LOG_FILE", "medextract.log"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		DevMode:  ParseBoolEnv("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("PORT", fmt.Sprint(c.Port), "must be between 1 and 65535")
	}
	if c.MaxFileSize <= 0 {
		return ErrInvalidValue("MAX_FILE_SIZE", fmt.Sprint(c.MaxFileSize), "must be positive")
	}
	if c.PDFExtractWorkers < 1 {
		return ErrInvalidValue("PDF_EXTRACT_WORKERS", fmt.Sprint(c.PDFExtractWorkers), "must be at least 1")
	}
	if c.MaxRetries < 0 {
		return ErrInvalidValue("MAX_RETRIES", fmt.Sprint(c.MaxRetries), "must not be negative")
	}
	if c.HistoryRetention < 0 {
		return ErrInvalidValue("HISTORY_RETENTION_DAYS", fmt.Sprint(c.HistoryRetention), "must not be negative")
	}
	if c.ExtractionTemperature < 0 || c.ExtractionTemperature > 2 {
		return ErrInvalidValue("EXTRACTION_TEMPERATURE", fmt.Sprint(c.ExtractionTemperature), "must be between 0 and 2")
	}
	return nil
}

// RequireModel reports whether the model endpoint is usable.
func (c *Config) RequireModel() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return ErrMissingAuth("openai")
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on AllowSelfSignedCerts
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
