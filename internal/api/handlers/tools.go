// Package handlers contains the HTTP handler implementations for the
// TextLens API. Handlers declare the narrow service interfaces they need
// and receive implementations through their constructors, so each file can
// be tested with local mocks.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"textlens/internal/core"
	"textlens/internal/credits"
	"textlens/internal/external"
	"textlens/internal/textutil"
	"textlens/internal/types"
)

// CreditEngine is the metering contract the tool handlers depend on.
// Implemented by credits.Engine.
type CreditEngine interface {
	LoadAndMaybeRefillBalance(ctx context.Context, p types.Principal) (types.BalanceState, error)
	Deduct(ctx context.Context, p types.Principal, amount int, reason string) (int, error)
}

// Detector abstracts the AI-content detection and plagiarism provider.
type Detector interface {
	Detect(ctx context.Context, text string) (*external.DetectionResult, error)
	CheckPlagiarism(ctx context.Context, text string) (*external.PlagiarismResult, error)
}

// Rewriter abstracts the LLM provider backing humanize and summarize.
type Rewriter interface {
	Humanize(ctx context.Context, text string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// TextFetcher retrieves page text for URL-sourced requests.
type TextFetcher interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// UsageWriter persists usage records after successful deductions.
// Implemented by db.UsageRecordRepo.
type UsageWriter interface {
	Insert(ctx context.Context, rec *types.UsageRecord) error
}

// ToolRequest is the shared request body for the metered tool endpoints.
// For source_type "text" the input is in Text. For "file" the client
// uploads extracted file text in Text and names the file in FileName.
// For "url" the service fetches the page itself.
type ToolRequest struct {
	SourceType string `json:"source_type" validate:"omitempty,oneof=text file url"`
	Text       string `json:"text"`
	URL        string `json:"url" validate:"omitempty,url"`
	FileName   string `json:"file_name"`
}

// sourceType returns the declared source, defaulting to text.
func (req *ToolRequest) sourceType() types.SourceType {
	if req.SourceType == "" {
		return types.SourceText
	}
	return types.SourceType(req.SourceType)
}

// descriptor names the input for usage history: the file name for file
// sources, the URL for url sources, empty for raw text.
func (req *ToolRequest) descriptor() string {
	switch req.sourceType() {
	case types.SourceFile:
		return req.FileName
	case types.SourceURL:
		return req.URL
	default:
		return ""
	}
}

// ToolsHandler serves the four metered tool endpoints. Each follows the
// same gate sequence: resolve plan and live balance, reject disallowed
// source types and oversized input, reject when the pre-check estimate
// exceeds the balance, call the provider, deduct, then persist a usage
// record for history-enabled users.
type ToolsHandler struct {
	engine    CreditEngine
	detector  Detector
	rewriter  Rewriter
	fetcher   TextFetcher
	usage     UsageWriter
	validator *core.Validator
	logger    *slog.Logger
}

// NewToolsHandler creates a ToolsHandler with the provided dependencies.
func NewToolsHandler(
	engine CreditEngine,
	detector Detector,
	rewriter Rewriter,
	fetcher TextFetcher,
	usage UsageWriter,
	v *core.Validator,
	l *slog.Logger,
) *ToolsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ToolsHandler{
		engine:    engine,
		detector:  detector,
		rewriter:  rewriter,
		fetcher:   fetcher,
		usage:     usage,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the metered tool endpoints.
func (h *ToolsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/detect", h.Detect)
	r.Post("/plagiarism", h.Plagiarism)
	r.Post("/humanize", h.Humanize)
	r.Post("/summarize", h.Summarize)
}

// gateContext carries the state shared across the gate sequence.
type gateContext struct {
	principal types.Principal
	state     types.BalanceState
	source    types.SourceType
	text      string
}

// prepare runs the front half of the gate sequence: decode, validate,
// balance load (with lazy refill), source-type check, input resolution,
// and the character-limit check. It writes the error response itself on
// failure and returns ok=false.
func (h *ToolsHandler) prepare(w http.ResponseWriter, r *http.Request, req *ToolRequest) (gateContext, bool) {
	var gc gateContext

	principal, ok := types.GetPrincipal(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request principal missing",
			nil,
		))
		return gc, false
	}
	gc.principal = principal

	if err := core.DecodeJSON(w, r, req); err != nil {
		core.Error(w, r, err)
		return gc, false
	}
	if err := h.validator.ValidateStruct(*req); err != nil {
		core.Error(w, r, err)
		return gc, false
	}
	gc.source = req.sourceType()

	state, err := h.engine.LoadAndMaybeRefillBalance(r.Context(), principal)
	if err != nil {
		core.Error(w, r, err)
		return gc, false
	}
	gc.state = state

	// Source-type gate runs before any fetch so blocked plans never cost
	// an outbound request.
	if err := credits.CheckGate(state.Plan, gc.source, 0); err != nil {
		core.Error(w, r, err)
		return gc, false
	}

	text, err := h.resolveInput(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return gc, false
	}
	gc.text = text

	if err := credits.CheckGate(state.Plan, gc.source, len(text)); err != nil {
		core.Error(w, r, err)
		return gc, false
	}

	return gc, true
}

// resolveInput produces the effective input text for the request.
func (h *ToolsHandler) resolveInput(ctx context.Context, req *ToolRequest) (string, error) {
	switch req.sourceType() {
	case types.SourceURL:
		if req.URL == "" {
			return "", types.NewAppError(
				types.ErrCodeValidationMissingField,
				"url is required for url-sourced requests",
				nil,
			)
		}
		return h.fetcher.FetchText(ctx, req.URL)
	default:
		if req.Text == "" {
			return "", types.NewAppError(
				types.ErrCodeValidationEmptyInput,
				"text must not be empty",
				nil,
			)
		}
		return req.Text, nil
	}
}

// checkEstimate rejects the request early when the pre-check estimate
// already exceeds the live balance.
func checkEstimate(estimate, available int) error {
	if estimate > available {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInsufficientCredits,
			"not enough credits for this operation",
			nil,
			map[string]any{"required": estimate, "available": available},
		)
	}
	return nil
}

// recordUsage persists a usage record for history-enabled users. Failures
// are logged, never surfaced: the deduction already happened and the
// result belongs to the caller.
func (h *ToolsHandler) recordUsage(ctx context.Context, gc gateContext, tool types.Tool, req *ToolRequest, score *float64, charged, remaining int, providerMeta any) {
	if !gc.principal.IsUser() || !gc.state.Plan.SaveHistory {
		return
	}

	var meta json.RawMessage
	if providerMeta != nil {
		if raw, err := json.Marshal(providerMeta); err == nil {
			meta = raw
		}
	}

	rec := &types.UsageRecord{
		ID:               uuid.NewString(),
		UserID:           gc.principal.UserID,
		Tool:             tool,
		SourceType:       gc.source,
		InputDescriptor:  req.descriptor(),
		InputChars:       len(gc.text),
		Words:            textutil.CountWords(gc.text),
		Score:            score,
		CreditsCharged:   charged,
		CreditsRemaining: remaining,
		ProviderMeta:     meta,
	}
	if err := h.usage.Insert(ctx, rec); err != nil {
		h.logger.Warn("failed to persist usage record",
			slog.String("user_id", gc.principal.UserID),
			slog.String("tool", string(tool)),
			slog.String("error", err.Error()),
		)
	}
}

// DetectResponse is the response body for POST /v1/detect.
type DetectResponse struct {
	Score            float64                  `json:"score"`
	Sentences        []external.SentenceScore `json:"sentences,omitempty"`
	Words            int                      `json:"words"`
	CreditsCharged   int                      `json:"credits_charged"`
	CreditsRemaining int                      `json:"credits_remaining"`
}

// Detect handles POST /v1/detect.
func (h *ToolsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	gc, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}

	words := textutil.CountWords(gc.text)
	cost := credits.DetectCost(words, gc.state.Plan)
	if err := checkEstimate(cost, gc.state.Credits); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.detector.Detect(r.Context(), gc.text)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	remaining, err := h.engine.Deduct(r.Context(), gc.principal, cost, string(types.ToolDetect))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordUsage(r.Context(), gc, types.ToolDetect, &req, &result.Score, cost, remaining, nil)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: DetectResponse{
		Score:            result.Score,
		Sentences:        result.Sentences,
		Words:            words,
		CreditsCharged:   cost,
		CreditsRemaining: remaining,
	}})
}

// PlagiarismResponse is the response body for POST /v1/plagiarism.
type PlagiarismResponse struct {
	Similarity       float64                     `json:"similarity"`
	Sources          []external.PlagiarismSource `json:"sources,omitempty"`
	Words            int                         `json:"words"`
	CreditsCharged   int                         `json:"credits_charged"`
	CreditsRemaining int                         `json:"credits_remaining"`
}

// Plagiarism handles POST /v1/plagiarism. The pre-check estimate gates the
// request; the final charge is the larger of the estimate and the usage the
// provider actually reported, so a scan can never be cheaper than the
// figure the caller was gated on.
func (h *ToolsHandler) Plagiarism(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	gc, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}

	words := textutil.CountWords(gc.text)
	estimate := credits.PlagiarismEstimate(words)
	if err := checkEstimate(estimate, gc.state.Credits); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.detector.CheckPlagiarism(r.Context(), gc.text)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	cost := credits.PlagiarismCost(estimate, result.ReportedCredits)
	remaining, err := h.engine.Deduct(r.Context(), gc.principal, cost, string(types.ToolPlagiarism))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordUsage(r.Context(), gc, types.ToolPlagiarism, &req, &result.Similarity, cost, remaining, result.Sources)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: PlagiarismResponse{
		Similarity:       result.Similarity,
		Sources:          result.Sources,
		Words:            words,
		CreditsCharged:   cost,
		CreditsRemaining: remaining,
	}})
}

// RewriteResponse is the response body for POST /v1/humanize and
// POST /v1/summarize.
type RewriteResponse struct {
	Text             string `json:"text"`
	CreditsCharged   int    `json:"credits_charged"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// Humanize handles POST /v1/humanize.
func (h *ToolsHandler) Humanize(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	gc, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}

	cost := credits.HumanizeCost(textutil.CountWords(gc.text))
	if err := checkEstimate(cost, gc.state.Credits); err != nil {
		core.Error(w, r, err)
		return
	}

	rewritten, err := h.rewriter.Humanize(r.Context(), gc.text)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	remaining, err := h.engine.Deduct(r.Context(), gc.principal, cost, string(types.ToolHumanize))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordUsage(r.Context(), gc, types.ToolHumanize, &req, nil, cost, remaining, nil)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RewriteResponse{
		Text:             rewritten,
		CreditsCharged:   cost,
		CreditsRemaining: remaining,
	}})
}

// Summarize handles POST /v1/summarize. URL-sourced requests are priced on
// a fixed fallback length rather than the fetched page size, so the charge
// is predictable before the fetch.
func (h *ToolsHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	gc, ok := h.prepare(w, r, &req)
	if !ok {
		return
	}

	chars := len(gc.text)
	if gc.source == types.SourceURL {
		chars = credits.SummarizeFallbackChars
	}
	cost := credits.SummarizeCost(chars)
	if err := checkEstimate(cost, gc.state.Credits); err != nil {
		core.Error(w, r, err)
		return
	}

	summary, err := h.rewriter.Summarize(r.Context(), gc.text)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	remaining, err := h.engine.Deduct(r.Context(), gc.principal, cost, string(types.ToolSummarize))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordUsage(r.Context(), gc, types.ToolSummarize, &req, nil, cost, remaining, nil)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RewriteResponse{
		Text:             summary,
		CreditsCharged:   cost,
		CreditsRemaining: remaining,
	}})
}
