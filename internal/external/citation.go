package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"textlens/internal/types"

	"golang.org/x/sync/errgroup"
)

const citationResultLimit = 5

// CitationSource is a single bibliographic match from a citation lookup.
type CitationSource struct {
	Kind      string   `json:"kind"` // "journal" or "book"
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Year      int      `json:"year,omitempty"`
	Publisher string   `json:"publisher,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	ISBN      string   `json:"isbn,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// CitationClient searches Crossref (journal articles) and OpenLibrary
// (books) for bibliographic records matching a free-text query. The two
// upstreams are queried concurrently; a failure on one side degrades to the
// other side's results rather than failing the lookup outright.
type CitationClient struct {
	*BaseClient
	crossrefBaseURL    string
	openLibraryBaseURL string
	logger             *slog.Logger
}

// NewCitationClient creates a citation lookup client.
func NewCitationClient(crossrefBaseURL, openLibraryBaseURL string, timeout time.Duration, logger *slog.Logger) *CitationClient {
	httpClient := &http.Client{Timeout: timeout}
	return &CitationClient{
		BaseClient:         NewBaseClient(httpClient, "citations", DefaultRetryPolicy(), "textlens/1.0"),
		crossrefBaseURL:    crossrefBaseURL,
		openLibraryBaseURL: openLibraryBaseURL,
		logger:             logger,
	}
}

// Lookup searches both upstreams for the given query and returns the merged
// results, journal articles first. It fails only when both upstreams fail.
func (c *CitationClient) Lookup(ctx context.Context, query string) ([]CitationSource, error) {
	var articles, books []CitationSource
	var articlesErr, booksErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		articles, articlesErr = c.searchCrossref(gctx, query)
		return nil
	})
	g.Go(func() error {
		books, booksErr = c.searchOpenLibrary(gctx, query)
		return nil
	})
	// Lookup errors are captured per-upstream, never returned from the
	// group, so one slow or failing upstream cannot cancel the other.
	_ = g.Wait()

	if articlesErr != nil && booksErr != nil {
		c.logger.Warn("citation lookup failed on both upstreams",
			"crossref_error", articlesErr,
			"openlibrary_error", booksErr,
		)
		return nil, types.NewAppError(
			types.ErrCodeUpstreamCitation,
			"citation lookup failed",
			articlesErr,
		)
	}
	if articlesErr != nil {
		c.logger.Warn("crossref lookup failed, returning book results only", "error", articlesErr)
	}
	if booksErr != nil {
		c.logger.Warn("openlibrary lookup failed, returning article results only", "error", booksErr)
	}

	return append(articles, books...), nil
}

type crossrefResponse struct {
	Message struct {
		Items []struct {
			Title  []string `json:"title"`
			Author []struct {
				Given  string `json:"given"`
				Family string `json:"family"`
			} `json:"author"`
			Published struct {
				DateParts [][]int `json:"date-parts"`
			} `json:"published"`
			Publisher string `json:"publisher"`
			DOI       string `json:"DOI"`
			URL       string `json:"URL"`
		} `json:"items"`
	} `json:"message"`
}

func (c *CitationClient) searchCrossref(ctx context.Context, query string) ([]CitationSource, error) {
	endpoint := fmt.Sprintf("%s/works?query=%s&rows=%d",
		c.crossrefBaseURL, url.QueryEscape(query), citationResultLimit)

	var out crossrefResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}

	sources := make([]CitationSource, 0, len(out.Message.Items))
	for _, item := range out.Message.Items {
		if len(item.Title) == 0 || item.Title[0] == "" {
			continue
		}

		authors := make([]string, 0, len(item.Author))
		for _, a := range item.Author {
			name := strings.TrimSpace(a.Given + " " + a.Family)
			if name != "" {
				authors = append(authors, name)
			}
		}

		var year int
		if len(item.Published.DateParts) > 0 && len(item.Published.DateParts[0]) > 0 {
			year = item.Published.DateParts[0][0]
		}

		sources = append(sources, CitationSource{
			Kind:      "journal",
			Title:     item.Title[0],
			Authors:   authors,
			Year:      year,
			Publisher: item.Publisher,
			DOI:       item.DOI,
			URL:       item.URL,
		})
	}

	return sources, nil
}

type openLibraryResponse struct {
	Docs []struct {
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		Publisher        []string `json:"publisher"`
		ISBN             []string `json:"isbn"`
		Key              string   `json:"key"`
	} `json:"docs"`
}

func (c *CitationClient) searchOpenLibrary(ctx context.Context, query string) ([]CitationSource, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=%d",
		c.openLibraryBaseURL, url.QueryEscape(query), citationResultLimit)

	var out openLibraryResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}

	sources := make([]CitationSource, 0, len(out.Docs))
	for _, doc := range out.Docs {
		if doc.Title == "" {
			continue
		}

		src := CitationSource{
			Kind:    "book",
			Title:   doc.Title,
			Authors: doc.AuthorName,
			Year:    doc.FirstPublishYear,
		}
		if len(doc.Publisher) > 0 {
			src.Publisher = doc.Publisher[0]
		}
		if len(doc.ISBN) > 0 {
			src.ISBN = doc.ISBN[0]
		}
		if doc.Key != "" {
			src.URL = "https://openlibrary.org" + doc.Key
		}

		sources = append(sources, src)
	}

	return sources, nil
}

func (c *CitationClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build citation request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamCitation, "failed to read citation response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return types.NewAppError(
			types.ErrCodeUpstreamCitation,
			fmt.Sprintf("citation upstream returned %d", resp.StatusCode),
			nil,
		)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamCitation, "failed to decode citation response", err)
	}

	return nil
}
