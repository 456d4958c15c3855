package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"textlens/internal/core"
	"textlens/internal/types"
)

// historyPageLimit bounds a single history page.
const historyPageLimit = 100

// exportPageSize is the batch size used when streaming the full history
// export.
const exportPageSize = 500

// HistoryStore is the persistence contract for usage history.
// Implemented by db.UsageRecordRepo.
type HistoryStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]types.UsageRecord, error)
	Delete(ctx context.Context, userID, recordID string) error
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}

// HistoryHandler serves usage history for authenticated users. Guests have
// no history: records are only written for user principals on plans with
// history enabled.
type HistoryHandler struct {
	store  HistoryStore
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(store HistoryStore, l *slog.Logger) *HistoryHandler {
	if l == nil {
		l = slog.Default()
	}
	return &HistoryHandler{store: store, logger: l}
}

// RegisterRoutes mounts the history endpoints.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.List)
	r.Get("/history/export", h.Export)
	r.Delete("/history/{id}", h.Delete)
	r.Delete("/history", h.Wipe)
}

// requireUser extracts the authenticated user principal, writing a 401
// when the caller is a guest.
func requireUser(w http.ResponseWriter, r *http.Request) (types.Principal, bool) {
	principal, ok := types.GetPrincipal(r.Context())
	if !ok || !principal.IsUser() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication is required for history access",
			nil,
		))
		return types.Principal{}, false
	}
	return principal, true
}

// HistoryListResponse is the response body for GET /v1/history.
type HistoryListResponse struct {
	Records []types.UsageRecord `json:"records"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// List handles GET /v1/history?limit=&offset=. Records are returned newest
// first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > historyPageLimit {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationBadRequest,
				"limit must be a number between 1 and 100",
				nil,
			))
			return
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationBadRequest,
				"offset must be a non-negative number",
				nil,
			))
			return
		}
		offset = parsed
	}

	records, err := h.store.ListByUser(r.Context(), principal.UserID, limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: HistoryListResponse{
		Records: records,
		Limit:   limit,
		Offset:  offset,
	}})
}

// Delete handles DELETE /v1/history/{id}. The delete is owner-scoped; a
// record belonging to another user reads as not found.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireUser(w, r)
	if !ok {
		return
	}

	recordID := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), principal.UserID, recordID); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// WipeResponse is the response body for DELETE /v1/history.
type WipeResponse struct {
	Deleted int64 `json:"deleted"`
}

// Wipe handles DELETE /v1/history, removing the caller's entire history.
func (h *HistoryHandler) Wipe(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteAllByUser(r.Context(), principal.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: WipeResponse{Deleted: deleted}})
}

// exportEnvelope frames the export file.
type exportEnvelope struct {
	UserID     string              `json:"user_id"`
	ExportedAt time.Time           `json:"exported_at"`
	Records    []types.UsageRecord `json:"records"`
}

// Export handles GET /v1/history/export, streaming the caller's full usage
// history as a gzip-compressed JSON document.
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireUser(w, r)
	if !ok {
		return
	}

	// Collect the full history in export batches before writing anything,
	// so storage errors still produce a clean JSON error response.
	var all []types.UsageRecord
	for offset := 0; ; offset += exportPageSize {
		page, err := h.store.ListByUser(r.Context(), principal.UserID, exportPageSize, offset)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="textlens-history.json.gz"`)
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	defer gz.Close()

	envelope := exportEnvelope{
		UserID:     principal.UserID,
		ExportedAt: time.Now().UTC(),
		Records:    all,
	}
	if err := json.NewEncoder(gz).Encode(envelope); err != nil {
		// Headers are already out; nothing left to do but log.
		h.logger.Warn("history export write failed",
			slog.String("user_id", principal.UserID),
			slog.String("error", err.Error()),
		)
	}
}
