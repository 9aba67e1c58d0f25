package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// maxErrorBodyBytes bounds how much of an upstream error body is read for
// diagnostics.
const maxErrorBodyBytes = 2048

// Config holds the HTTP backend parameters.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	Retry           backoff.Policy
}

// Client is an OpenAI-compatible chat-completions backend.
type Client struct {
	cfg    Config
	http   *http.Client
	logger logging.Logger
}

var _ Capability = (*Client)(nil)

// NewClient constructs the HTTP backend.  BaseURL and Model are required.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeAIInputInvalid, "llm base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New(errors.ErrCodeAIInputInvalid, "llm model is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("llm"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Capability.  Transient HTTP failures (5xx, 429,
// network errors) are retried with the configured backoff; 4xx responses
// are semantic and returned immediately.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	var out string
	err := backoff.Retry(ctx, c.cfg.Retry, func(ctx context.Context) error {
		text, err := c.completeOnce(ctx, req)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *Client) completeOnce(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxOutputTokens,
	}
	if req.ForceJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAIInferenceFailed, "failed to build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAIUnavailable, "chat completion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		code := errors.ErrCodeAIInferenceFailed
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			code = errors.ErrCodeAIUnavailable
		}
		return "", errors.Newf(code, "chat completion returned %d", resp.StatusCode).
			WithDetail(string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAIMalformedOutput, "failed to decode chat response")
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.ErrCodeAIMalformedOutput, "chat response has no choices")
	}

	c.logger.Debug("chat completion finished",
		logging.String("model", c.cfg.Model),
		logging.Duration("elapsed", time.Since(start)),
	)
	return parsed.Choices[0].Message.Content, nil
}

// ParseJSONOutput unmarshals model output into dest, tolerating the fenced
// ```json blocks some models emit around otherwise valid objects.
func ParseJSONOutput(raw string, dest interface{}) error {
	trimmed := raw
	if idx := bytes.IndexByte([]byte(trimmed), '{'); idx > 0 {
		trimmed = trimmed[idx:]
	}
	if idx := bytes.LastIndexByte([]byte(trimmed), '}'); idx >= 0 {
		trimmed = trimmed[:idx+1]
	}
	if err := json.Unmarshal([]byte(trimmed), dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeAIMalformedOutput,
			fmt.Sprintf("model output is not valid JSON (%d bytes)", len(raw)))
	}
	return nil
}
