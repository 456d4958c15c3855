package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"textlens/internal/textutil"
	"textlens/internal/types"
)

// maxPageBytes caps how much of a remote page is read for URL-sourced
// tool input.
const maxPageBytes = 1 << 20

// PageFetcher retrieves the visible text of a web page for URL-sourced
// tool requests.
type PageFetcher struct {
	*BaseClient
	logger *slog.Logger
}

// NewPageFetcher creates a page fetcher.
func NewPageFetcher(timeout time.Duration, logger *slog.Logger) *PageFetcher {
	httpClient := &http.Client{Timeout: timeout}
	return &PageFetcher{
		BaseClient: NewBaseClient(httpClient, "pagefetch", RetryPolicy{MaxRetries: 1, MinWait: 250 * time.Millisecond, MaxWait: 2 * time.Second}, "textlens/1.0"),
		logger:     logger,
	}
}

// FetchText downloads the page at pageURL and returns its visible text.
// HTML is stripped; plain text passes through. Non-text content types are
// rejected.
func (f *PageFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeValidationInvalidURL, "invalid source URL", err)
	}
	req.Header.Set("Accept", "text/html, text/plain")

	resp, err := f.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("source URL returned %d", resp.StatusCode),
			nil,
		)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/") {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidURL,
			"source URL did not return a text document",
			nil,
		)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to read source URL", err)
	}

	text := string(raw)
	if strings.Contains(contentType, "text/html") || strings.Contains(text, "<html") {
		text = textutil.StripHTML(text)
	}

	return strings.TrimSpace(text), nil
}
