package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"textlens/internal/types"
)

// mockHistoryStore implements HistoryStore for testing.
type mockHistoryStore struct {
	records   []types.UsageRecord
	listErr   error
	listCalls []listCall
	deleteErr error
	deleted   []string
	wipeCount int64
	wipeErr   error
}

type listCall struct {
	UserID string
	Limit  int
	Offset int
}

func (m *mockHistoryStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]types.UsageRecord, error) {
	m.listCalls = append(m.listCalls, listCall{UserID: userID, Limit: limit, Offset: offset})
	if m.listErr != nil {
		return nil, m.listErr
	}
	if offset >= len(m.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], nil
}

func (m *mockHistoryStore) Delete(_ context.Context, userID, recordID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, recordID)
	return nil
}

func (m *mockHistoryStore) DeleteAllByUser(_ context.Context, _ string) (int64, error) {
	if m.wipeErr != nil {
		return 0, m.wipeErr
	}
	return m.wipeCount, nil
}

func newHistoryRouter(p types.Principal, store *mockHistoryStore) http.Handler {
	h := NewHistoryHandler(store, discardLogger())
	r := chi.NewRouter()
	r.Use(injectPrincipal(p))
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func historyRequest(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func usageFixture(id string) types.UsageRecord {
	return types.UsageRecord{
		ID:         id,
		UserID:     "user_1",
		Tool:       types.ToolDetect,
		SourceType: types.SourceText,
		InputChars: 120,
		Words:      20,
	}
}

func TestHistoryList_Success(t *testing.T) {
	store := &mockHistoryStore{records: []types.UsageRecord{usageFixture("rec_1"), usageFixture("rec_2")}}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodGet, "/v1/history")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp HistoryListResponse
	decodeData(t, rec, &resp)
	if len(resp.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(resp.Records))
	}
	if resp.Limit != 20 || resp.Offset != 0 {
		t.Errorf("expected default limit 20 offset 0, got %d/%d", resp.Limit, resp.Offset)
	}
	if len(store.listCalls) != 1 || store.listCalls[0].UserID != "user_1" {
		t.Errorf("unexpected list calls: %+v", store.listCalls)
	}
}

func TestHistoryList_CustomLimitAndOffset(t *testing.T) {
	store := &mockHistoryStore{}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodGet, "/v1/history?limit=50&offset=100")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(store.listCalls) != 1 || store.listCalls[0].Limit != 50 || store.listCalls[0].Offset != 100 {
		t.Errorf("unexpected list calls: %+v", store.listCalls)
	}
}

func TestHistoryList_LimitBounds(t *testing.T) {
	for _, limit := range []string{"0", "101", "-5", "abc"} {
		store := &mockHistoryStore{}
		router := newHistoryRouter(testUserPrincipal(), store)

		rec := historyRequest(t, router, http.MethodGet, "/v1/history?limit="+limit)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected status 400, got %d", limit, rec.Code)
		}
		if len(store.listCalls) != 0 {
			t.Errorf("limit=%s: store should not be queried", limit)
		}
	}
}

func TestHistoryList_NegativeOffset(t *testing.T) {
	router := newHistoryRouter(testUserPrincipal(), &mockHistoryStore{})

	rec := historyRequest(t, router, http.MethodGet, "/v1/history?offset=-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHistoryList_GuestRejected(t *testing.T) {
	store := &mockHistoryStore{}
	router := newHistoryRouter(testGuestPrincipal(), store)

	rec := historyRequest(t, router, http.MethodGet, "/v1/history")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	detail := decodeErrorBody(t, rec)
	if detail.Code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("expected error code %s, got %s", types.ErrCodeAuthTokenMissing, detail.Code)
	}
	if len(store.listCalls) != 0 {
		t.Error("store should not be queried for guests")
	}
}

func TestHistoryDelete_Success(t *testing.T) {
	store := &mockHistoryStore{}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodDelete, "/v1/history/rec_42")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "rec_42" {
		t.Errorf("unexpected deletes: %v", store.deleted)
	}
}

func TestHistoryDelete_NotOwned(t *testing.T) {
	store := &mockHistoryStore{
		deleteErr: types.NewAppError(types.ErrCodeNotFoundUsageRecord, "record not found", nil),
	}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodDelete, "/v1/history/rec_42")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestHistoryWipe_ReturnsCount(t *testing.T) {
	store := &mockHistoryStore{wipeCount: 17}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodDelete, "/v1/history")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp WipeResponse
	decodeData(t, rec, &resp)
	if resp.Deleted != 17 {
		t.Errorf("expected 17 deleted, got %d", resp.Deleted)
	}
}

func TestHistoryExport_Success(t *testing.T) {
	store := &mockHistoryStore{records: []types.UsageRecord{usageFixture("rec_1"), usageFixture("rec_2")}}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodGet, "/v1/history/export")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("expected gzip content encoding, got %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="textlens-history.json.gz"` {
		t.Errorf("unexpected content disposition: %q", got)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("failed to open gzip stream: %v", err)
	}
	defer gz.Close()

	var envelope struct {
		UserID  string              `json:"user_id"`
		Records []types.UsageRecord `json:"records"`
	}
	if err := json.NewDecoder(gz).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if envelope.UserID != "user_1" {
		t.Errorf("expected user_1 in export, got %q", envelope.UserID)
	}
	if len(envelope.Records) != 2 {
		t.Errorf("expected 2 exported records, got %d", len(envelope.Records))
	}
}

func TestHistoryExport_StorageErrorBeforeHeaders(t *testing.T) {
	store := &mockHistoryStore{
		listErr: types.NewAppError(types.ErrCodeInternalDB, "db down", nil),
	}
	router := newHistoryRouter(testUserPrincipal(), store)

	rec := historyRequest(t, router, http.MethodGet, "/v1/history/export")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got == "gzip" {
		t.Error("error responses must not be gzip encoded")
	}
	detail := decodeErrorBody(t, rec)
	if detail.Code != string(types.ErrCodeInternalDB) {
		t.Errorf("expected error code %s, got %s", types.ErrCodeInternalDB, detail.Code)
	}
}

func TestHistoryExport_GuestRejected(t *testing.T) {
	router := newHistoryRouter(testGuestPrincipal(), &mockHistoryStore{})

	rec := historyRequest(t, router, http.MethodGet, "/v1/history/export")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
