// Package llm calls an OpenAI-compatible chat completions API to extract
// structured data from redacted text.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"medextract/core"
	"medextract/extraction"
	"medextract/logging"
)

// Config holds configuration for the model client.
type Config struct {
	// APIKey is the OpenAI or compatible API key
	APIKey string

	// BaseURL is the API endpoint, empty for the OpenAI default
	BaseURL string

	// Model is the chat model name
	Model string

	// MaxTokens is the maximum tokens for the response
	MaxTokens int

	// Temperature controls response randomness (0.0-1.0)
	Temperature float32

	// MaxRetries is the number of extra attempts for retryable failures
	MaxRetries int

	// RetryDelay is the first backoff delay, doubled per attempt
	RetryDelay time.Duration

	// HTTPClient carries TLS settings and timeouts (optional)
	HTTPClient *http.Client
}

// ConfigFromCore derives a client Config from application configuration.
func ConfigFromCore(cfg *core.Config) Config {
	return Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.BaseLLMURL,
		Model:       cfg.ExtractionModel,
		MaxTokens:   cfg.ExtractionMaxTokens,
		Temperature: float32(cfg.ExtractionTemperature),
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		HTTPClient:  core.GetHTTPClient(cfg, cfg.AITimeout),
	}
}

// Client sends extraction requests to the model.
type Client struct {
	config Config
	api    *openai.Client
	logger *logging.Logger
}

// NewClient creates a new Client. A nil logger disables logging.
func NewClient(config Config, logger *logging.Logger) *Client {
	if config.Model == "" {
		config.Model = core.DefaultExtractionModel
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &Client{
		config: config,
		api:    openai.NewClientWithConfig(clientConfig),
		logger: logger.Named("llm"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends req and returns the raw reply text. Retryable failures are
// retried with exponential backoff until MaxRetries or ctx expires. All
// failures are returned as *CallError.
func (c *Client) Complete(ctx context.Context, req *extraction.Request) (string, error) {
	var last *CallError
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay << (attempt - 1)
			c.logger.Warn("Retrying model call",
				zap.Int("attempt", attempt+1),
				zap.String("kind", string(last.Kind)),
				zap.Duration("delay", delay))
			if err := sleep(ctx, delay); err != nil {
				last = Classify(err)
				last.Attempts = attempt
				break
			}
		}

		start := time.Now()
		content, err := c.completeOnce(ctx, req)
		if err == nil {
			c.logger.Debug("Model call succeeded",
				zap.String("model", c.config.Model),
				zap.Int("attempt", attempt+1),
				zap.Int("response_length", len(content)),
				zap.Duration("elapsed", time.Since(start)))
			return content, nil
		}

		last = Classify(err)
		last.Attempts = attempt + 1
		c.logger.Debug("Model call failed",
			zap.String("kind", string(last.Kind)),
			zap.Int("status", last.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Duration("elapsed", time.Since(start)))
		if !last.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return "", last
}

func (c *Client) completeOnce(ctx context.Context, req *extraction.Request) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
