package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"textlens/internal/core"
	"textlens/internal/textutil"
)

// UtilitiesHandler serves the free, unmetered text utilities. No plan gate
// or deduction applies; guests and users get identical behavior.
type UtilitiesHandler struct {
	validator *core.Validator
}

// NewUtilitiesHandler creates a UtilitiesHandler.
func NewUtilitiesHandler(v *core.Validator) *UtilitiesHandler {
	return &UtilitiesHandler{validator: v}
}

// RegisterRoutes mounts the free tool endpoints.
func (h *UtilitiesHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tools/diff", h.Diff)
	r.Post("/tools/wordcount", h.WordCount)
}

// DiffRequest is the request body for POST /v1/tools/diff.
type DiffRequest struct {
	Before string `json:"before" validate:"required"`
	After  string `json:"after" validate:"required"`
}

// DiffResponse is the response body for POST /v1/tools/diff.
type DiffResponse struct {
	Lines []textutil.DiffLine `json:"lines"`
}

// Diff handles POST /v1/tools/diff.
func (h *UtilitiesHandler) Diff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: DiffResponse{
		Lines: textutil.DiffLines(req.Before, req.After),
	}})
}

// WordCountRequest is the request body for POST /v1/tools/wordcount.
type WordCountRequest struct {
	Text string `json:"text" validate:"required"`
}

// WordCount handles POST /v1/tools/wordcount.
func (h *UtilitiesHandler) WordCount(w http.ResponseWriter, r *http.Request) {
	var req WordCountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: textutil.Analyze(req.Text)})
}
