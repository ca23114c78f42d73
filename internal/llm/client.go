// Package llm holds the external language-model clients: a hand-rolled
// OpenAI-compatible client for Groq and a genai-backed client for Gemini,
// behind one minimal Complete interface. Callers treat a nil client as
// "service unavailable" and take their deterministic fallbacks.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"foodiebot/internal/types"
)

// Options configures a single completion call: sampling temperature and
// the output token budget.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is the minimal interface onto the external intent/reply service:
// one blocking request/response call returning raw text.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// GroqClient implements Client against Groq's OpenAI-compatible API.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetry   int
	httpClient *http.Client
}

// GroqConfig holds configuration for the Groq client.
type GroqConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	MaxRetry int
}

// DefaultGroqConfig returns sensible defaults.
func DefaultGroqConfig(apiKey string) GroqConfig {
	return GroqConfig{
		APIKey:   apiKey,
		BaseURL:  "https://api.groq.com/openai/v1",
		Model:    "llama-3.1-8b-instant",
		Timeout:  20 * time.Second,
		MaxRetry: 1,
	}
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(config GroqConfig) *GroqClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultGroqConfig("").BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	return &GroqClient{
		apiKey:   config.APIKey,
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		model:    config.Model,
		maxRetry: config.MaxRetry,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt and returns the raw completion text.
// Transport failures and 429/5xx responses are retried at most maxRetry
// times with jittered backoff; an exhausted budget is reported as
// ErrServiceUnavailable so callers take their deterministic fallback.
func (c *GroqClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: api key not configured", types.ErrServiceUnavailable)
	}

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetry; attempt++ {
		if attempt > 0 {
			// Single bounded retry with jitter; a second failure is just
			// another path into the fallback.
			select {
			case <-time.After(200*time.Millisecond + time.Duration(rand.Intn(300))*time.Millisecond):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", types.ErrServiceUnavailable, ctx.Err())
			}
		}

		text, retryable, err := c.doRequest(ctx, jsonData)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", lastErr
}

func (c *GroqClient) doRequest(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", types.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: reading response: %v", types.ErrServiceUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("%w: status %d", types.ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("%w: status %d: %s", types.ErrServiceUnavailable, resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("%w: %s", types.ErrServiceUnavailable, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("%w: no completion returned", types.ErrMalformedResponse)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}
