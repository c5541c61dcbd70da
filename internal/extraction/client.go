package extraction

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// CompletionClient is the single network dependency of the extraction
// pipeline: one request/response text completion plus a lightweight
// availability probe.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Available(ctx context.Context) bool
}

// ClientConfig holds model service configuration.
type ClientConfig struct {
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint, e.g. a local Ollama server
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int // additional attempts after a timeout
}

// OpenAIClient talks to an OpenAI-compatible completion endpoint with a
// per-call timeout and bounded retries. Timeouts are retried; a connection
// failure is terminal for the call.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	logger      *zap.Logger
}

// NewOpenAIClient creates a completion client.
func NewOpenAIClient(cfg ClientConfig, logger *zap.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}
}

// Complete sends one prompt and returns the raw completion text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		c.logger.Info("Calling completion service",
			zap.String("model", c.model),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxRetries+1))

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("no completion choices returned")
			}
			content := resp.Choices[0].Message.Content
			c.logger.Info("Completion received", zap.Int("chars", len(content)))
			return content, nil
		}

		// Abandoned request: stop immediately.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if isTimeout(err) {
			c.logger.Warn("Completion timed out", zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		}

		// Connection refused and everything else is terminal for this call.
		c.logger.Error("Completion call failed", zap.Error(err))
		return "", err
	}

	return "", fmt.Errorf("completion timed out after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Available probes the endpoint by listing models.
func (c *OpenAIClient) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := c.client.ListModels(probeCtx)
	return err == nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
