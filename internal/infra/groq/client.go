package groq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Client talks to Groq's OpenAI-compatible chat completion endpoint.
type Client struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	sleep      func(context.Context, time.Duration) error
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("groq api key is empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("groq model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	apiCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	apiCfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if apiCfg.BaseURL == "" {
		apiCfg.BaseURL = defaultBaseURL
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		sleep:      sleepCtx,
	}, nil
}

// CompleteJSON runs one chat completion in JSON mode and returns the raw
// model output. Rate-limit and server errors are retried with backoff up to
// MaxRetries; everything else fails fast.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	if c == nil || c.api == nil {
		return "", fmt.Errorf("groq client is not configured")
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(reqCtx, req)
		cancel()
		if err != nil {
			if !retryable(err) {
				return "", fmt.Errorf("groq completion: %w", err)
			}
			lastErr = err
			continue
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("groq completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("groq completion after %d retries: %w", c.maxRetries, lastErr)
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures (timeouts, resets) are worth one more try.
	return !errors.Is(err, context.Canceled)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
