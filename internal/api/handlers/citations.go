package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"textlens/internal/core"
	"textlens/internal/external"
	"textlens/internal/types"
)

// CitationLookup abstracts the bibliographic search provider.
type CitationLookup interface {
	Lookup(ctx context.Context, query string) ([]external.CitationSource, error)
}

// CitationsHandler serves citation metadata lookups. Lookups are free;
// only the text tools consume credits.
type CitationsHandler struct {
	lookup CitationLookup
}

// NewCitationsHandler creates a CitationsHandler.
func NewCitationsHandler(lookup CitationLookup) *CitationsHandler {
	return &CitationsHandler{lookup: lookup}
}

// RegisterRoutes mounts the citation endpoints.
func (h *CitationsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/citations/lookup", h.Lookup)
}

// CitationLookupResponse is the response body for GET /v1/citations/lookup.
type CitationLookupResponse struct {
	Query   string                    `json:"query"`
	Sources []external.CitationSource `json:"sources"`
}

// Lookup handles GET /v1/citations/lookup?q=<query>.
func (h *CitationsHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"query parameter q is required",
			nil,
		))
		return
	}

	sources, err := h.lookup.Lookup(r.Context(), query)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if len(sources) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundCitation,
			"no sources matched the query",
			nil,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CitationLookupResponse{
		Query:   query,
		Sources: sources,
	}})
}
