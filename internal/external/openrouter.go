package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"textlens/internal/types"
)

const (
	humanizeModel  = "anthropic/claude-3.5-haiku"
	summarizeModel = "anthropic/claude-3.5-haiku"

	humanizeSystemPrompt = "You rewrite text so it reads naturally, with varied " +
		"sentence structure and human cadence, while preserving the original " +
		"meaning, facts, and approximate length. Reply with the rewritten text " +
		"only, no preamble."

	summarizeSystemPrompt = "You summarize text into a concise overview that " +
		"captures the main points. Reply with the summary only, no preamble."
)

// OpenRouterClient talks to the OpenRouter chat completion API, which backs
// the humanizer and summarizer tools.
type OpenRouterClient struct {
	*BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewOpenRouterClient creates an OpenRouter API client.
func NewOpenRouterClient(baseURL string, apiKey types.SecretString, timeout time.Duration, logger *slog.Logger) *OpenRouterClient {
	httpClient := &http.Client{Timeout: timeout}
	return &OpenRouterClient{
		BaseClient: NewBaseClient(httpClient, "openrouter", DefaultRetryPolicy(), "textlens/1.0"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Humanize rewrites the given text in a more natural register.
func (c *OpenRouterClient) Humanize(ctx context.Context, text string) (string, error) {
	return c.complete(ctx, humanizeModel, humanizeSystemPrompt, text)
}

// Summarize produces a concise summary of the given text.
func (c *OpenRouterClient) Summarize(ctx context.Context, text string) (string, error) {
	return c.complete(ctx, summarizeModel, summarizeSystemPrompt, text)
}

func (c *OpenRouterClient) complete(ctx context.Context, model, system, user string) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode openrouter request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build openrouter request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "failed to read openrouter response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("openrouter request failed",
			"model", model,
			"status", resp.StatusCode,
		)
		return "", types.NewAppError(
			types.ErrCodeUpstreamLLM,
			fmt.Sprintf("openrouter returned %d", resp.StatusCode),
			nil,
		)
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "failed to decode openrouter response", err)
	}

	if len(out.Choices) == 0 {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "openrouter returned no completion choices", nil)
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "openrouter returned an empty completion", nil)
	}

	return content, nil
}
