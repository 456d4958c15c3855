package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"textlens/internal/external"
	"textlens/internal/types"
)

// mockCitationLookup implements CitationLookup for testing.
type mockCitationLookup struct {
	sources []external.CitationSource
	err     error
	queries []string
}

func (m *mockCitationLookup) Lookup(_ context.Context, query string) ([]external.CitationSource, error) {
	m.queries = append(m.queries, query)
	return m.sources, m.err
}

func newCitationsRouter(lookup *mockCitationLookup) http.Handler {
	h := NewCitationsHandler(lookup)
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func TestCitationLookup_Success(t *testing.T) {
	lookup := &mockCitationLookup{sources: []external.CitationSource{
		{Kind: "journal", Title: "Attention Is All You Need", Authors: []string{"Vaswani, A."}, Year: 2017, DOI: "10.5555/3295222"},
		{Kind: "book", Title: "The Go Programming Language", Authors: []string{"Donovan, A.", "Kernighan, B."}, Year: 2015, ISBN: "9780134190440"},
	}}
	router := newCitationsRouter(lookup)

	req := httptest.NewRequest(http.MethodGet, "/v1/citations/lookup?q=attention+is+all+you+need", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CitationLookupResponse
	decodeData(t, rec, &resp)
	if resp.Query != "attention is all you need" {
		t.Errorf("unexpected echoed query: %q", resp.Query)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.Sources))
	}
	if resp.Sources[0].Kind != "journal" || resp.Sources[1].ISBN != "9780134190440" {
		t.Errorf("unexpected sources: %+v", resp.Sources)
	}
	if len(lookup.queries) != 1 || lookup.queries[0] != "attention is all you need" {
		t.Errorf("unexpected lookup queries: %v", lookup.queries)
	}
}

func TestCitationLookup_MissingQuery(t *testing.T) {
	lookup := &mockCitationLookup{}
	router := newCitationsRouter(lookup)

	req := httptest.NewRequest(http.MethodGet, "/v1/citations/lookup", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	detail := decodeErrorBody(t, rec)
	if detail.Code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("expected error code %s, got %s", types.ErrCodeValidationMissingField, detail.Code)
	}
	if len(lookup.queries) != 0 {
		t.Errorf("lookup should not run for a missing query, got %v", lookup.queries)
	}
}

func TestCitationLookup_BlankQueryRejected(t *testing.T) {
	router := newCitationsRouter(&mockCitationLookup{})

	req := httptest.NewRequest(http.MethodGet, "/v1/citations/lookup?q=%20%20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestCitationLookup_NoMatches(t *testing.T) {
	router := newCitationsRouter(&mockCitationLookup{sources: nil})

	req := httptest.NewRequest(http.MethodGet, "/v1/citations/lookup?q=xzqvnork", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	detail := decodeErrorBody(t, rec)
	if detail.Code != string(types.ErrCodeNotFoundCitation) {
		t.Errorf("expected error code %s, got %s", types.ErrCodeNotFoundCitation, detail.Code)
	}
}

func TestCitationLookup_UpstreamError(t *testing.T) {
	router := newCitationsRouter(&mockCitationLookup{
		err: types.NewAppError(types.ErrCodeUpstreamCitation, "both upstreams failed", nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/citations/lookup?q=golang", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
}
