// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arrwatch/arrwatch/internal/audit"
	"github.com/arrwatch/arrwatch/internal/auth"
	"github.com/arrwatch/arrwatch/internal/bus"
	"github.com/arrwatch/arrwatch/internal/control/middleware"
	"github.com/arrwatch/arrwatch/internal/correlator"
	"github.com/arrwatch/arrwatch/internal/deletion"
	"github.com/arrwatch/arrwatch/internal/domain/request/lifecycle"
	"github.com/arrwatch/arrwatch/internal/domain/request/model"
	"github.com/arrwatch/arrwatch/internal/domain/request/store"
	"github.com/arrwatch/arrwatch/internal/ingest"
	"github.com/arrwatch/arrwatch/internal/librarysync"
)

type stubValidator struct {
	id, name string
	err      error
}

func (s stubValidator) ValidateToken(ctx context.Context, token string) (string, string, error) {
	return s.id, s.name, s.err
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "requests.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRouter(t *testing.T) (*api, *store.Store) {
	t.Helper()
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	engine := &ingest.Engine{Store: s, Correlator: correlator.New(s, nil), Bus: b, Logger: zerolog.Nop()}

	deps := Deps{
		Store:       s,
		Bus:         b,
		Deletion:    deletion.New(deletion.Deps{Store: s, Bus: b, Audit: audit.NewLogger(), EnableSync: false, Logger: zerolog.Nop(), Background: context.Background()}),
		LibrarySync: nil,
		AdminGate:   auth.NewAdminGate(stubValidator{id: "admin1", name: "Dad"}, []string{"admin1"}),
		RequestMgr:  ingest.NewRequestManagerHandler(engine),
		IndexerMov:  ingest.NewIndexerMoviesHandler(engine),
		IndexerTV:   ingest.NewIndexerTVHandler(engine),
		TorrentCli:  ingest.NewTorrentClientHandler(engine),
		MediaSrv:    ingest.NewMediaServerHandler(engine),
		SSEHeartbeat: time.Second,
		Middleware:  middleware.StackConfig{},
		Logger:      zerolog.Nop(),
	}
	deps.LibrarySync = librarysync.New(librarysync.Deps{Store: s, Bus: b, Audit: audit.NewLogger(), Logger: zerolog.Nop()})

	return &api{deps: deps}, s
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestListRequests_ReturnsCreatedRequest(t *testing.T) {
	a, s := newTestRouter(t)

	req := lifecycle.NewRequest(time.Now().UTC())
	req.Kind = model.KindMovie
	req.Title = "Arrival"
	require.NoError(t, s.CreateRequest(context.Background(), req))

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	a.listRequests(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []model.MediaRequest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Arrival", got[0].Title)
}

func TestGetRequest_NotFound(t *testing.T) {
	a, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/requests/999", nil)
	r = withURLParam(r, "id", "999")
	a.getRequest(rr, r)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHookTorrentClient_TransitionsMatchedRequest(t *testing.T) {
	a, s := newTestRouter(t)

	req := lifecycle.NewRequest(time.Now().UTC())
	req.Kind = model.KindMovie
	req.Title = "Arrival"
	req.ContentHash = "abc123"
	req.State = model.StateDownloading
	require.NoError(t, s.CreateRequest(context.Background(), req))

	body, _ := json.Marshal(map[string]any{"hash": "abc123", "name": "Arrival", "path": "/media/arrival.mkv", "size": 123})
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/hooks/torrent-client", bytes.NewReader(body))
	a.hookTorrentClient(rr, r)

	require.Equal(t, http.StatusAccepted, rr.Code)

	got, err := s.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDownloaded, got.State)
}

func TestRequireAdmin_RejectsMissingToken(t *testing.T) {
	a, _ := newTestRouter(t)

	called := false
	handler := a.requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/requests/1/delete", nil)
	handler.ServeHTTP(rr, r)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, called)
}

func TestRequireAdmin_AllowsAllowlistedToken(t *testing.T) {
	a, _ := newTestRouter(t)

	called := false
	handler := a.requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/requests/1/delete", nil)
	r.Header.Set("Authorization", "Bearer admin-token")
	handler.ServeHTTP(rr, r)

	require.True(t, called)
}
