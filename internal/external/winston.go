package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"textlens/internal/types"
)

// WinstonClient talks to the Winston AI API for AI-content detection and
// plagiarism scanning. Both endpoints report the credits they consumed,
// which the caller reconciles against the local estimate before charging.
type WinstonClient struct {
	*BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewWinstonClient creates a Winston API client.
func NewWinstonClient(baseURL string, apiKey types.SecretString, timeout time.Duration, logger *slog.Logger) *WinstonClient {
	httpClient := &http.Client{Timeout: timeout}
	return &WinstonClient{
		BaseClient: NewBaseClient(httpClient, "winston", DefaultRetryPolicy(), "textlens/1.0"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// DetectionResult is the outcome of an AI-content detection scan.
type DetectionResult struct {
	// Score is the probability that the text is human-written, in [0, 100].
	Score float64
	// Sentences carries per-sentence scores when the provider returns them.
	Sentences []SentenceScore
	// ReportedCredits is the credit usage the provider reported for the scan.
	ReportedCredits int
}

// SentenceScore is a per-sentence detection score.
type SentenceScore struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// PlagiarismSource is a single matched source from a plagiarism scan.
type PlagiarismSource struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Percent float64 `json:"percent"`
}

// PlagiarismResult is the outcome of a plagiarism scan.
type PlagiarismResult struct {
	// Similarity is the overall similarity percentage in [0, 100].
	Similarity float64
	Sources    []PlagiarismSource
	// ReportedCredits is the credit usage the provider reported for the scan.
	ReportedCredits int
}

type winstonDetectRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type winstonDetectResponse struct {
	Status      int             `json:"status"`
	Score       float64         `json:"score"`
	Sentences   []SentenceScore `json:"sentences"`
	CreditsUsed int             `json:"credits_used"`
}

type winstonPlagiarismRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Country  string `json:"country,omitempty"`
}

type winstonPlagiarismResponse struct {
	Status int `json:"status"`
	Result struct {
		Score        float64 `json:"score"`
		SourceCounts int     `json:"sourceCounts"`
	} `json:"result"`
	Sources     []PlagiarismSource `json:"sources"`
	CreditsUsed int                `json:"credits_used"`
}

// Detect runs an AI-content detection scan on the given text.
func (c *WinstonClient) Detect(ctx context.Context, text string) (*DetectionResult, error) {
	var out winstonDetectResponse
	err := c.postJSON(ctx, "/v2/ai-content-detection", winstonDetectRequest{Text: text, Language: "en"}, &out)
	if err != nil {
		return nil, err
	}

	return &DetectionResult{
		Score:           out.Score,
		Sentences:       out.Sentences,
		ReportedCredits: out.CreditsUsed,
	}, nil
}

// CheckPlagiarism runs a plagiarism scan on the given text.
func (c *WinstonClient) CheckPlagiarism(ctx context.Context, text string) (*PlagiarismResult, error) {
	var out winstonPlagiarismResponse
	err := c.postJSON(ctx, "/v2/plagiarism", winstonPlagiarismRequest{Text: text, Language: "en"}, &out)
	if err != nil {
		return nil, err
	}

	return &PlagiarismResult{
		Similarity:      out.Result.Score,
		Sources:         out.Sources,
		ReportedCredits: out.CreditsUsed,
	}, nil
}

func (c *WinstonClient) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode winston request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build winston request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDetector, "failed to read winston response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("winston request failed",
			"path", path,
			"status", resp.StatusCode,
		)
		return types.NewAppError(
			types.ErrCodeUpstreamDetector,
			fmt.Sprintf("winston returned %d", resp.StatusCode),
			nil,
		)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDetector, "failed to decode winston response", err)
	}

	return nil
}
