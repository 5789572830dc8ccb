// Package genai calls Azure OpenAI chat completions to turn retrieved
// context into a natural language answer.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dataverse-agent/internal/common/config"
	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/common/httpx"
	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/common/metrics"
)

// fallbackAnswer is returned when the model produces no usable text.
const fallbackAnswer = "I don't have enough information to answer that question."

const systemPrompt = "You are a helpful assistant that answers questions based on data " +
	"from a Microsoft Dataverse environment. Use the provided context to give accurate, " +
	"concise answers. If the context does not contain the answer, say so instead of guessing."

// Client is an Azure OpenAI chat completions client.
type Client struct {
	endpoint    string
	apiKey      string
	deployment  string
	apiVersion  string
	maxTokens   int
	temperature float64
	httpClient  *httpx.Client
	logger      logger.Logger
}

func NewClient(cfg config.OpenAIConfig, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		deployment:  cfg.Deployment,
		apiVersion:  cfg.APIVersion,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  httpx.NewClient(timeout),
		logger:      log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the model's answer. Empty or
// whitespace-only completions become the fixed fallback answer rather
// than an error.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CompletionRequests.WithLabelValues("error").Inc()
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.NewCompletionTimeoutError()
		}
		return "", errors.NewCompletionFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CompletionRequests.WithLabelValues("error").Inc()
		return "", errors.NewCompletionFailedError(err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.CompletionRequests.WithLabelValues("error").Inc()
		return "", errors.NewCompletionFailedError(
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.CompletionRequests.WithLabelValues("error").Inc()
		return "", errors.NewCompletionFailedError(err)
	}
	metrics.CompletionRequests.WithLabelValues("success").Inc()

	if len(parsed.Choices) == 0 {
		c.logger.Warn("completion returned no choices", nil)
		return fallbackAnswer, nil
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return fallbackAnswer, nil
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
