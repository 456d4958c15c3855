package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"textlens/internal/core"
	"textlens/internal/types"
)

// CreditsHandler reports the caller's plan and live balance.
type CreditsHandler struct {
	engine CreditEngine
}

// NewCreditsHandler creates a CreditsHandler.
func NewCreditsHandler(engine CreditEngine) *CreditsHandler {
	return &CreditsHandler{engine: engine}
}

// RegisterRoutes mounts the credits endpoint.
func (h *CreditsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/credits", h.Get)
}

// CreditsResponse is the response body for GET /v1/credits.
type CreditsResponse struct {
	Plan             types.PlanID `json:"plan"`
	Credits          int          `json:"credits"`
	MaxChars         int          `json:"max_chars,omitempty"`
	AllowedSources   []string     `json:"allowed_sources"`
	SaveHistory      bool         `json:"save_history"`
	CreditsResetAt   *time.Time   `json:"credits_reset_at,omitempty"`
	OneTimeExpiresAt *time.Time   `json:"one_time_expires_at,omitempty"`
}

// Get handles GET /v1/credits. Reading the balance may perform a lazy
// refill, so the figure returned is always current.
func (h *CreditsHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := types.GetPrincipal(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request principal missing",
			nil,
		))
		return
	}

	state, err := h.engine.LoadAndMaybeRefillBalance(r.Context(), principal)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	allowed := make([]string, 0, 3)
	if state.Plan.AllowText {
		allowed = append(allowed, string(types.SourceText))
	}
	if state.Plan.AllowFile {
		allowed = append(allowed, string(types.SourceFile))
	}
	if state.Plan.AllowURL {
		allowed = append(allowed, string(types.SourceURL))
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CreditsResponse{
		Plan:             state.Plan.ID,
		Credits:          state.Credits,
		MaxChars:         state.Plan.MaxChars,
		AllowedSources:   allowed,
		SaveHistory:      state.Plan.SaveHistory,
		CreditsResetAt:   state.Metadata.CreditsResetAt,
		OneTimeExpiresAt: state.Metadata.OneTimeExpiresAt,
	}})
}
